package recordio_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/davidvella/xsort/recordio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errWrite = errors.New("its a me errorio")

type mockWriter struct {
	errorCounter int
	counter      int
}

func (w *mockWriter) Write(p []byte) (n int, err error) {
	w.counter++
	if w.counter == w.errorCounter {
		return 0, errWrite
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func toStrings(recs [][]byte) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, string(r))
	}
	return out
}

func TestReader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		delim byte
		want  []string
	}{
		{name: "empty input", input: "", delim: '\n', want: []string{}},
		{name: "trailing delimiter", input: "banana\napple\n", delim: '\n', want: []string{"banana", "apple"}},
		{name: "no trailing delimiter", input: "banana\napple", delim: '\n', want: []string{"banana", "apple"}},
		{name: "empty records", input: "\n\na\n", delim: '\n', want: []string{"", "", "a"}},
		{name: "custom delimiter", input: "a\x00b\nc\x00", delim: 0, want: []string{"a", "b\nc"}},
		{
			name:  "record larger than buffer",
			input: strings.Repeat("x", 3*recordio.DefaultBufferSize) + "\ny\n",
			delim: '\n',
			want:  []string{strings.Repeat("x", 3*recordio.DefaultBufferSize), "y"},
		},
		{
			name:  "unterminated record larger than buffer",
			input: "y\n" + strings.Repeat("z", recordio.DefaultBufferSize+7),
			delim: '\n',
			want:  []string{"y", strings.Repeat("z", recordio.DefaultBufferSize+7)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recordio.ReadRecords(strings.NewReader(tt.input), tt.delim)
			require.NoError(t, err)
			assert.Equal(t, tt.want, toStrings(got))
		})
	}
}

func TestReaderCounters(t *testing.T) {
	r := recordio.NewReader(strings.NewReader("ab\ncd\nef"), '\n', 0)
	for range r.All() {
	}
	assert.NoError(t, r.Err())
	assert.Equal(t, int64(3), r.Records())
	assert.Equal(t, int64(8), r.Offset())

	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderMaxSize(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "terminated", input: "ok\ntoolong\n"},
		{name: "unterminated", input: "ok\ntoolong"},
		{name: "spans buffer", input: "ok\n" + strings.Repeat("q", 2*recordio.DefaultBufferSize) + "\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := recordio.NewReader(strings.NewReader(tt.input), '\n', 5)
			rec, err := r.Next()
			require.NoError(t, err)
			assert.Equal(t, "ok", string(rec))

			_, err = r.Next()
			assert.ErrorIs(t, err, recordio.ErrRecordTooLarge)
			assert.ErrorIs(t, r.Err(), recordio.ErrRecordTooLarge)
		})
	}
}

func TestReaderReadError(t *testing.T) {
	r := recordio.NewReader(failingReader{}, '\n', 0)
	n := 0
	for range r.All() {
		n++
	}
	assert.Zero(t, n)
	assert.ErrorContains(t, r.Err(), "disk on fire")
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := recordio.NewWriter(&buf, '\n')
	for _, rec := range []string{"apple", "", "cherry"} {
		require.NoError(t, w.Write([]byte(rec)))
	}
	require.NoError(t, w.Flush())

	assert.Equal(t, "apple\n\ncherry\n", buf.String())
	assert.Equal(t, int64(3), w.Records())
	assert.Equal(t, int64(14), w.Bytes())
}

func TestWriterHandleError(t *testing.T) {
	w := recordio.NewWriter(&mockWriter{errorCounter: 1}, '\n')
	require.NoError(t, w.Write([]byte("buffered")))
	assert.ErrorIs(t, w.Flush(), errWrite)

	big := bytes.Repeat([]byte("b"), 2*recordio.DefaultBufferSize)
	w = recordio.NewWriter(&mockWriter{errorCounter: 1}, '\n')
	assert.ErrorIs(t, w.Write(big), errWrite)
}

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{name: "empty", input: "", want: []string{}},
		{name: "terminated", input: "b\na\n", want: []string{"b", "a"}},
		{name: "unterminated", input: "b\na", want: []string{"b", "a"}},
		{name: "only delimiters", input: "\n\n", want: []string{"", ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(tt.input)
			got := []string{}
			for start, end := range recordio.Scan(data, '\n') {
				got = append(got, string(data[start:end]))
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
