/*
Package filterql implements the filter query language used by table
filters, such as

	{col} > 5 and {other} contains "x"
	year({created}) >= 2020 or not ({count} is odd)

Input is split into tokens by a context-sensitive tokenizer: every lexeme
carries a Rule that decides whether it may follow the tokens matched so far,
and among the legal lexemes the longest match wins, ties going to the higher
priority. The token sequence is then assembled into a tree by Parse.

Fields are written {name}, strings are quoted with ', " or `, and anything
else in operand position is a bare value. Relational operators are
contains, datestartswith, = (eq), != (ne), > (gt), >= (ge), < (lt) and
<= (le). Unary predicates are written "is blank", "is_odd" and so on.
The calendar transformations year, month, day, hour, minute and second
wrap a single operand and must be followed by a relational or unary
operator. not and ! negate the following comparison or block; or binds
looser than and.

A Lexicon is immutable once built and may be shared by concurrent callers.
*/
package filterql
