package engine

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"golang.org/x/crypto/sha3"

	"github.com/rpmchale/dash-table/internal/pkg/filterql"
)

// DefaultCacheSize is the number of compiled filters kept by a Compiler.
const DefaultCacheSize = 1024

// Filter is a compiled filter query. A nil Root matches every row.
type Filter struct {
	Query       string
	Root        filterql.Node
	Canonical   string
	Fingerprint string
}

// Match reports whether row satisfies the filter.
func (f *Filter) Match(row filterql.Row) bool {
	return filterql.Match(f.Root, row)
}

// Fields lists the columns the filter reads.
func (f *Filter) Fields() []string {
	return filterql.Fields(f.Root)
}

// Compiler turns query strings into Filters, caching the most recently used
// ones. It is safe for concurrent use.
type Compiler struct {
	lexicon *filterql.Lexicon

	mu    sync.Mutex
	cache *lru.Cache
}

// NewCompiler returns a Compiler over lex keeping up to cacheSize filters.
// A cacheSize of zero or less disables caching.
func NewCompiler(lex *filterql.Lexicon, cacheSize int) *Compiler {
	c := &Compiler{lexicon: lex}
	if cacheSize > 0 {
		c.cache = lru.New(cacheSize)
	}
	return c
}

// Lexicon returns the lexicon the compiler tokenizes with.
func (c *Compiler) Lexicon() *filterql.Lexicon {
	return c.lexicon
}

// Compile parses query. An empty or blank query yields a match-all filter.
// Failed queries are not cached.
func (c *Compiler) Compile(query string) (*Filter, error) {
	if strings.TrimSpace(query) == "" {
		return &Filter{Query: query}, nil
	}
	if f, ok := c.lookup(query); ok {
		return f, nil
	}

	root, err := filterql.Compile(c.lexicon, query)
	if err != nil {
		return nil, err
	}
	canonical := root.String()
	f := &Filter{
		Query:       query,
		Root:        root,
		Canonical:   canonical,
		Fingerprint: Fingerprint(canonical),
	}
	c.add(query, f)
	return f, nil
}

// Len returns the number of cached filters.
func (c *Compiler) Len() int {
	if c.cache == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func (c *Compiler) lookup(query string) (*Filter, bool) {
	if c.cache == nil {
		return nil, false
	}
	c.mu.Lock()
	v, ok := c.cache.Get(query)
	c.mu.Unlock()
	if !ok {
		return nil, false
	}
	return v.(*Filter), true
}

func (c *Compiler) add(query string, f *Filter) {
	if c.cache == nil {
		return
	}
	c.mu.Lock()
	c.cache.Add(query, f)
	c.mu.Unlock()
}

// Fingerprint identifies a canonical query: spellings that parse to the same
// tree share a fingerprint.
func Fingerprint(canonical string) string {
	sum := sha3.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
