// Package ir holds the value types every recipe argument is reduced to, their
// canonical JSON encoding, and the domain-separated hashes built on top of it.
//
// All other internal packages import ir; ir imports nothing internal.
//
// Constraints:
//   - no floats: numbers are int64, anything else must be quoted in the recipe
//   - no nulls: an argument is either present with a value or absent
//   - map keys are ordered by UTF-16 code units when encoded
package ir
