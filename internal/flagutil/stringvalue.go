// Package flagutil provides additional support around the flag package. At the moment that consists
// solely of the StringValue struct which conforms to the flag.Value method for multiple occurrence
// flags containing string values. Conceivably an IPValue struct would be pretty useful too as well
// as, e.g. a CIDRValue.
//
// The reason for providing StringValue is so that commands can offer a flag to set multiple values
// such as cmd/dnsbenchd's repeatable -resolver/-domain start-up flags:
//
// dnsbenchd -resolver 1.1.1.1 -resolver 8.8.8.8 -domain example.com -domain example.net
// ...
//
// Usage is as documented in the flags package:
//
//		var resolvers flagutil.StringValue
//	     flagSet.Var(&resolvers, "resolver", "Short description of opt")
//	     args := resolvers.Unique() // Return a deduplicated array of strings
//
// or
//
//	flag.Var(&domains, "domain", "Short description of opt")
//	args := domains.Unique() // Return a deduplicated array of strings
package flagutil

import (
	"strings"
)

// StringValue is the type provided to flag.Var()
type StringValue struct {
	strings []string
}

// Set appends a string to the internal array - it is called by the flag package for each occurrence
// of the corresponding option on the command line. Part of the flag.Value interface.
func (t *StringValue) Set(s string) error {
	t.strings = append(t.strings, s)

	return nil
}

// String returns a space separated string of all the arguments provided by Set. Part of the
// flag.Value interface.
func (t *StringValue) String() string {
	return strings.Join(t.strings, " ")
}

// Args returns a copy of the array of strings returned by Set. You can safely modify this
// array without fear of changing the internal data.
func (t *StringValue) Args() []string {
	return append([]string{}, t.strings...)
}

// NArg returns the number of strings created by Set
func (t *StringValue) NArg() int {
	return len(t.strings)
}

// Unique returns the strings created by Set with duplicates removed,
// preserving first-occurrence order. cmd/dnsbenchd uses this rather than
// Args() for its -resolver/-domain start-up flags, since passing the same
// resolver or domain twice on the command line shouldn't double its weight
// in the convenience run that follows.
func (t *StringValue) Unique() []string {
	seen := make(map[string]bool, len(t.strings))
	out := make([]string, 0, len(t.strings))
	for _, s := range t.strings {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
