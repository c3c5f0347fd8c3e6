// Package record defines what the sorter treats as a record and how records
// are ordered and deduplicated.
//
// A record is the byte sequence between two delimiters. The delimiter itself
// is stripped before records are compared or tested for equality, so the final
// line of an input that lacks a trailing delimiter orders exactly like the
// same line with one.
//
// Ordering is pluggable through Compare. Bytes is the default; FoldCase,
// Reverse and JSONKey cover the common alternatives:
//
//	byFingerprint := record.JSONKey("data", "leaf_cert", "fingerprint")
//	dedupe := record.SameOrder(byFingerprint)
//
// Equal decides which adjacent records in sorted output are duplicates. It has
// to agree with the Compare used to sort, meaning Equal(a, b) implies
// Compare(a, b) == 0.
package record
