package flagutil

import (
	"testing"
)

func TestStringValue(t *testing.T) {
	var ms StringValue
	l := ms.NArg()
	if l != 0 {
		t.Error("Expected length=0 at initial state, not", l)
	}
	s := ms.String()
	if s != "" {
		t.Error("String() at initial state should be empty, not", s)
	}

	err := ms.Set("a")
	if err != nil {
		t.Error("Unexpected an error return from Set", err)
	}

	l = ms.NArg()
	if l != 1 {
		t.Error("Expected length=1 after one set, not", l)
	}
	ms.Set("b")

	s = ms.String()
	if s != "a b" {
		t.Error("String should be 'a b', not", s)
	}

	ss := ms.Args()
	if len(ss) != 2 || ss[0] != "a" || ss[1] != "b" {
		t.Error("Returned array should be [a, b], not", ss)
	}

	ss[0] = "A"
	ss = append(ss, "c")

	ss = ms.Args()
	if len(ss) != 2 || ss[0] != "a" || ss[1] != "b" {
		t.Error("Second returned array should be [a, b], not", ss)
	}
}

// A resolver or domain repeated on the command line (-resolver 1.1.1.1
// -resolver 1.1.1.1) shouldn't be queried twice per probe round.
func TestStringValueUnique(t *testing.T) {
	var resolvers StringValue
	resolvers.Set("1.1.1.1")
	resolvers.Set("8.8.8.8")
	resolvers.Set("1.1.1.1") // repeated on the command line

	u := resolvers.Unique()
	if len(u) != 2 || u[0] != "1.1.1.1" || u[1] != "8.8.8.8" {
		t.Error("Expected [1.1.1.1 8.8.8.8] with the duplicate dropped, not", u)
	}

	// Args() is untouched by Unique() and still reports every occurrence.
	if len(resolvers.Args()) != 3 {
		t.Error("Args() should still report all three occurrences, not", resolvers.Args())
	}
}

func TestStringValueUniqueEmpty(t *testing.T) {
	var domains StringValue
	if u := domains.Unique(); len(u) != 0 {
		t.Error("Expected empty slice for a StringValue with no Set calls, not", u)
	}
}
