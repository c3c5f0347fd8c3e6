package recordio_test

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/davidvella/xsort/recordio"
)

// ExampleWriter demonstrates writing records and reading them back.
func ExampleWriter() {
	var buf bytes.Buffer
	w := recordio.NewWriter(&buf, '\n')
	for _, rec := range []string{"apple", "banana", ""} {
		if err := w.Write([]byte(rec)); err != nil {
			fmt.Printf("Error writing record: %v\n", err)
			return
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Printf("Error flushing: %v\n", err)
		return
	}
	fmt.Printf("Wrote %d records, %d bytes\n", w.Records(), w.Bytes())

	r := recordio.NewReader(&buf, '\n', 0)
	for rec := range r.All() {
		fmt.Printf("Read record: %q\n", rec)
	}

	// Output:
	// Wrote 3 records, 14 bytes
	// Read record: "apple"
	// Read record: "banana"
	// Read record: ""
}

// ExampleScan demonstrates locating records inside a chunk held in memory.
func ExampleScan() {
	data := []byte("cherry\napple\nbanana")
	for start, end := range recordio.Scan(data, '\n') {
		fmt.Printf("[%d, %d) %s\n", start, end, data[start:end])
	}

	// Output:
	// [0, 6) cherry
	// [7, 12) apple
	// [13, 19) banana
}

// ExampleReadRecords demonstrates reading a whole stream, including a final
// record without delimiter.
func ExampleReadRecords() {
	records, err := recordio.ReadRecords(strings.NewReader("x|y|z"), '|')
	if err != nil {
		fmt.Printf("Error reading records: %v\n", err)
		return
	}
	fmt.Println(len(records), string(bytes.Join(records, []byte(","))))

	// Output: 3 x,y,z
}
