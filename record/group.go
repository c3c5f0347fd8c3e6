package record

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// GroupFormat renders a group of two or more records that compare equal as
// one output record, appended to dst.
type GroupFormat func(dst []byte, group [][]byte) []byte

// Lines writes every record of a group followed by delim. The output record
// then gets its own delimiter, so groups are separated by an empty record.
func Lines(delim byte) GroupFormat {
	return func(dst []byte, group [][]byte) []byte {
		for _, rec := range group {
			dst = append(dst, rec...)
			dst = append(dst, delim)
		}
		return dst
	}
}

// JSONGroup writes a group of JSON records as one object holding the shared
// key at path and the records themselves under field:
//
//	{"fingerprint":"AA:BB","certificates":[{...},{...}]}
//
// The key is named after the last element of path. Records are embedded
// verbatim and must be valid JSON.
func JSONGroup(field string, path ...string) GroupFormat {
	keys := append([]string(nil), path...)
	name := "key"
	if len(keys) > 0 {
		name = keys[len(keys)-1]
	}
	return func(dst []byte, group [][]byte) []byte {
		dst = append(dst, '{')
		dst = strconv.AppendQuote(dst, name)
		dst = append(dst, ':')
		v, t, _, err := jsonparser.Get(group[0], keys...)
		switch {
		case err != nil:
			dst = append(dst, "null"...)
		case t == jsonparser.String:
			// Get strips the quotes but leaves escapes in place.
			dst = append(dst, '"')
			dst = append(dst, v...)
			dst = append(dst, '"')
		default:
			dst = append(dst, v...)
		}
		dst = append(dst, ',')
		dst = strconv.AppendQuote(dst, field)
		dst = append(dst, ":["...)
		for i, rec := range group {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = append(dst, rec...)
		}
		return append(dst, "]}"...)
	}
}

// ParseGroupFormat resolves a group format by name: "lines" or
// "json:<dotted.path>". JSON groups hold their records under field.
func ParseGroupFormat(name, field string, delim byte) (GroupFormat, error) {
	switch {
	case name == "lines":
		return Lines(delim), nil
	case strings.HasPrefix(name, "json:"):
		path := strings.TrimPrefix(name, "json:")
		if path == "" {
			return nil, fmt.Errorf("record: empty json path in group format %q", name)
		}
		if field == "" {
			field = "records"
		}
		return JSONGroup(field, strings.Split(path, ".")...), nil
	}
	return nil, fmt.Errorf("record: unknown group format %q", name)
}
