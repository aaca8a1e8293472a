package filterql

import (
	"testing"
	"time"
)

// testRow implements Row for testing
type testRow map[string]interface{}

func (r testRow) Get(field string) (interface{}, bool) {
	v, ok := r[field]
	return v, ok
}

func TestMatch(t *testing.T) {
	row := testRow{
		"name":    "Order Service",
		"count":   float64(7),
		"ratio":   2.5,
		"code":    "10",
		"created": "2021-03-14 15:09:26",
		"active":  true,
		"note":    "   ",
		"missing": nil,
		"meta":    map[string]interface{}{"k": "v"},
		"bigp":    float64(9007199254740881),
		"bigc":    float64(94906249 * 94906247),
		"huge":    1e300,
	}

	tests := []struct {
		query    string
		expected bool
	}{
		{`{name} contains "service"`, true},
		{`{name} contains "payment"`, false},
		{`{name} = "Order Service"`, true},
		{`{name} != "Order Service"`, false},
		{"{count} > 5", true},
		{"{count} >= 7", true},
		{"{count} < 7", false},
		{"{count} <= 7.0", true},
		{"{code} > 9", true},
		{"{code} = 10", true},
		{"{count} is odd", true},
		{"{count} is even", false},
		{"{count} is prime", true},
		{"{ratio} is odd", false},
		{"{bigp} is prime", true},
		{"{bigc} is prime", false},
		{"{bigc} is odd", true},
		{"{huge} is prime", false},
		{"{count} is num", true},
		{"{code} is num", false},
		{"{code} is str", true},
		{"{active} is bool", true},
		{"{active} = true", true},
		{"{note} is blank", true},
		{"{missing} is nil", true},
		{"{absent} is nil", true},
		{"{absent} is blank", true},
		{"{meta} is object", true},
		{"{created} is date", true},
		{"{name} is date", false},
		{"{created} datestartswith 2021-03", true},
		{"{created} datestartswith 2021-03-14T15", true},
		{"{created} datestartswith 2020", false},
		{"year({created}) = 2021", true},
		{"year({created}) >= 2022", false},
		{"month({created}) = 3", true},
		{"day({created}) is even", true},
		{"hour({created}) = 15", true},
		{"minute({created}) < 10", true},
		{"second({created}) is odd", false},
		{"year({name}) = 2021", false},
		{"{active}", true},
		{"{missing}", false},
		{"not {missing}", true},
		{"not ({count} is odd)", false},
		{"{count} > 5 and {name} contains order", true},
		{"{count} > 10 or {active}", true},
		{"{count} > 10 or {missing}", false},
		{"({count} > 10 or {code} = 10) and not {missing}", true},
		{"{name} > 5", true},
		{"{meta} > 5", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			node, err := Compile(testLexicon, tt.query)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			result := Match(node, row)
			if result != tt.expected {
				t.Errorf("Match(%q) = %v, want %v", tt.query, result, tt.expected)
			}
		})
	}
}

func TestMatchLargePrimeIsFast(t *testing.T) {
	node, err := Compile(testLexicon, "{n} is prime")
	if err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	for i := 0; i < 100; i++ {
		if !Match(node, testRow{"n": float64(9007199254740881)}) {
			t.Fatal("9007199254740881 is prime")
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("100 primality checks took %v", elapsed)
	}
}

func TestMatchNil(t *testing.T) {
	if !Match(nil, testRow{}) {
		t.Error("nil filter should match every row")
	}
}
