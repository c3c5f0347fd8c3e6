package record

import (
	"bytes"
	"cmp"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/buger/jsonparser"
)

// Compare defines a total order over records. It returns a negative number
// when a sorts before b, zero when they are equivalent and a positive number
// otherwise. Records never include their delimiter.
type Compare func(a, b []byte) int

// Equal reports whether two records are duplicates of each other. An Equal
// must only report true for records its paired Compare considers equivalent,
// otherwise duplicates are not guaranteed to be adjacent in sorted output.
type Equal func(a, b []byte) bool

// Bytes orders records lexicographically by their raw bytes.
func Bytes(a, b []byte) int {
	return bytes.Compare(a, b)
}

// FoldCase orders records by their Unicode lower-case form. Invalid UTF-8
// bytes are compared as raw bytes.
func FoldCase(a, b []byte) int {
	for len(a) > 0 && len(b) > 0 {
		ra, na := utf8.DecodeRune(a)
		rb, nb := utf8.DecodeRune(b)
		if (ra == utf8.RuneError && na == 1) || (rb == utf8.RuneError && nb == 1) {
			if c := bytes.Compare(a[:na], b[:nb]); c != 0 {
				return c
			}
		} else if c := cmp.Compare(unicode.ToLower(ra), unicode.ToLower(rb)); c != 0 {
			return c
		}
		a, b = a[na:], b[nb:]
	}
	return cmp.Compare(len(a), len(b))
}

// Reverse inverts the order defined by c.
func Reverse(c Compare) Compare {
	return func(a, b []byte) int {
		return c(b, a)
	}
}

// JSONKey orders JSON records by the value found at path. Numbers are
// compared numerically, every other value by its raw bytes. Numbers too large
// for a float64 sort after every other number, by their raw bytes. Records missing
// the key, or that are not valid JSON, sort before records that have it and
// are ordered among themselves by their raw bytes.
func JSONKey(path ...string) Compare {
	keys := append([]string(nil), path...)
	return func(a, b []byte) int {
		va, ta, _, ea := jsonparser.Get(a, keys...)
		vb, tb, _, eb := jsonparser.Get(b, keys...)
		switch {
		case ea != nil && eb != nil:
			return bytes.Compare(a, b)
		case ea != nil:
			return -1
		case eb != nil:
			return 1
		}
		if ta == jsonparser.Number && tb == jsonparser.Number {
			fa, errA := jsonparser.ParseFloat(va)
			fb, errB := jsonparser.ParseFloat(vb)
			switch {
			case errA == nil && errB == nil:
				return cmp.Compare(fa, fb)
			case errA == nil:
				return -1
			case errB == nil:
				return 1
			}
		}
		if ta != tb {
			return cmp.Compare(ta, tb)
		}
		return bytes.Compare(va, vb)
	}
}

// Exact reports byte-for-byte equality.
func Exact(a, b []byte) bool {
	return bytes.Equal(a, b)
}

// EqualFold reports equality under Unicode case folding. It pairs with
// FoldCase.
func EqualFold(a, b []byte) bool {
	return bytes.EqualFold(a, b)
}

// SameOrder treats records as duplicates when c considers them equivalent,
// for example two JSON records sharing a key under JSONKey.
func SameOrder(c Compare) Equal {
	return func(a, b []byte) bool {
		return c(a, b) == 0
	}
}

// ParseCompare resolves a comparator by name: "bytes", "foldcase",
// "reverse" or "json:<dotted.path>". A "-" prefix reverses any of them.
func ParseCompare(name string) (Compare, error) {
	if rest, ok := strings.CutPrefix(name, "-"); ok {
		c, err := ParseCompare(rest)
		if err != nil {
			return nil, err
		}
		return Reverse(c), nil
	}
	switch {
	case name == "" || name == "bytes":
		return Bytes, nil
	case name == "foldcase":
		return FoldCase, nil
	case name == "reverse":
		return Reverse(Bytes), nil
	case strings.HasPrefix(name, "json:"):
		path := strings.TrimPrefix(name, "json:")
		if path == "" {
			return nil, fmt.Errorf("record: empty json path in comparator %q", name)
		}
		return JSONKey(strings.Split(path, ".")...), nil
	}
	return nil, fmt.Errorf("record: unknown comparator %q", name)
}

// ParseEqual resolves a duplicate test by name: "exact", "fold" or "order".
// "order" treats records c considers equivalent as duplicates.
func ParseEqual(name string, c Compare) (Equal, error) {
	switch name {
	case "", "exact":
		return Exact, nil
	case "fold":
		return EqualFold, nil
	case "order":
		return SameOrder(c), nil
	}
	return nil, fmt.Errorf("record: unknown equality %q", name)
}
