package record_test

import (
	"slices"
	"testing"

	"github.com/davidvella/xsort/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name    string
		compare record.Compare
		a, b    string
		want    int
	}{
		{name: "bytes less", compare: record.Bytes, a: "apple", b: "banana", want: -1},
		{name: "bytes equal", compare: record.Bytes, a: "apple", b: "apple", want: 0},
		{name: "bytes prefix", compare: record.Bytes, a: "app", b: "apple", want: -1},
		{name: "bytes upper before lower", compare: record.Bytes, a: "Zebra", b: "apple", want: -1},
		{name: "foldcase ignores case", compare: record.FoldCase, a: "Apple", b: "apple", want: 0},
		{name: "foldcase orders letters", compare: record.FoldCase, a: "Zebra", b: "apple", want: 1},
		{name: "foldcase unicode", compare: record.FoldCase, a: "ÉCOLE", b: "école", want: 0},
		{name: "foldcase shorter first", compare: record.FoldCase, a: "ab", b: "ABC", want: -1},
		{name: "foldcase invalid utf8", compare: record.FoldCase, a: "\xff", b: "\xfe", want: 1},
		{name: "reverse", compare: record.Reverse(record.Bytes), a: "a", b: "b", want: 1},
		{name: "json string key", compare: record.JSONKey("k"), a: `{"k":"b","x":1}`, b: `{"x":0,"k":"a"}`, want: 1},
		{name: "json equal key", compare: record.JSONKey("k"), a: `{"k":"a","x":1}`, b: `{"k":"a","x":2}`, want: 0},
		{name: "json numeric key", compare: record.JSONKey("n"), a: `{"n":9}`, b: `{"n":10}`, want: -1},
		{name: "json nested key", compare: record.JSONKey("data", "fp"), a: `{"data":{"fp":"AA"}}`, b: `{"data":{"fp":"AB"}}`, want: -1},
		{name: "json missing sorts first", compare: record.JSONKey("k"), a: `{"x":1}`, b: `{"k":"a"}`, want: -1},
		{name: "json both missing", compare: record.JSONKey("k"), a: `b`, b: `a`, want: 1},
		{name: "json overflowing number after small", compare: record.JSONKey("k"), a: `{"k":3e999}`, b: `{"k":5}`, want: 1},
		{name: "json overflowing number after large", compare: record.JSONKey("k"), a: `{"k":3e999}`, b: `{"k":20}`, want: 1},
		{name: "json overflowing numbers by bytes", compare: record.JSONKey("k"), a: `{"k":3e999}`, b: `{"k":4e999}`, want: -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.compare([]byte(tt.a), []byte(tt.b))
			assert.Equal(t, tt.want, sign(got))
			assert.Equal(t, -tt.want, sign(tt.compare([]byte(tt.b), []byte(tt.a))))
		})
	}
}

func TestJSONKeyIsTransitive(t *testing.T) {
	recs := []string{
		`{"k":3e999}`, `{"k":-3e999}`, `{"k":5}`, `{"k":20}`, `{"k":-1.5}`,
		`{"k":"20"}`, `{"k":"b"}`, `{"k":true}`, `{"k":null}`, `{"x":1}`, `not json`,
	}
	compare := record.JSONKey("k")
	for _, a := range recs {
		for _, b := range recs {
			for _, c := range recs {
				ab := compare([]byte(a), []byte(b))
				bc := compare([]byte(b), []byte(c))
				if ab <= 0 && bc <= 0 {
					assert.LessOrEqual(t, compare([]byte(a), []byte(c)), 0, "%s <= %s <= %s", a, b, c)
				}
			}
		}
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, record.Exact([]byte("a"), []byte("a")))
	assert.False(t, record.Exact([]byte("a"), []byte("A")))
	assert.True(t, record.EqualFold([]byte("a"), []byte("A")))

	sameKey := record.SameOrder(record.JSONKey("id"))
	assert.True(t, sameKey([]byte(`{"id":1,"v":"x"}`), []byte(`{"id":1,"v":"y"}`)))
	assert.False(t, sameKey([]byte(`{"id":1}`), []byte(`{"id":2}`)))
}

func TestParseCompare(t *testing.T) {
	lines := [][]byte{[]byte("b"), []byte("C"), []byte("a")}

	tests := []struct {
		name    string
		want    []string
		wantErr bool
	}{
		{name: "", want: []string{"C", "a", "b"}},
		{name: "bytes", want: []string{"C", "a", "b"}},
		{name: "foldcase", want: []string{"a", "b", "C"}},
		{name: "reverse", want: []string{"b", "a", "C"}},
		{name: "-foldcase", want: []string{"C", "b", "a"}},
		{name: "json:", wantErr: true},
		{name: "unknown", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := record.ParseCompare(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)

			sorted := slices.Clone(lines)
			slices.SortFunc(sorted, c)
			got := make([]string, 0, len(sorted))
			for _, l := range sorted {
				got = append(got, string(l))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCompareJSON(t *testing.T) {
	c, err := record.ParseCompare("json:data.leaf_cert.fingerprint")
	require.NoError(t, err)
	a := []byte(`{"data":{"leaf_cert":{"fingerprint":"01:AA"}}}`)
	b := []byte(`{"data":{"leaf_cert":{"fingerprint":"02:AA"}}}`)
	assert.Negative(t, c(a, b))
}

func TestParseEqual(t *testing.T) {
	for _, name := range []string{"", "exact", "fold", "order"} {
		eq, err := record.ParseEqual(name, record.Bytes)
		require.NoError(t, err, name)
		assert.True(t, eq([]byte("x"), []byte("x")), name)
	}
	_, err := record.ParseEqual("semantic", record.Bytes)
	assert.Error(t, err)
}
