package xsort_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidvella/xsort"
	"github.com/davidvella/xsort/record"
)

// ExampleRun demonstrates sorting and deduplicating a file.
func ExampleRun() {
	dir, err := os.MkdirTemp("", "xsort-example-*")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "fruit.txt")
	output := filepath.Join(dir, "fruit.sorted.txt")
	if err := os.WriteFile(input, []byte("banana\napple\nbanana\ncherry\n"), 0o600); err != nil {
		fmt.Printf("Failed to write input: %v\n", err)
		return
	}

	res, err := xsort.Run(context.Background(), input, output,
		xsort.WithBudget(8), // Tiny budget to force several chunks
		xsort.WithWorkers(2),
		xsort.WithTempDir(dir),
	)
	if err != nil {
		fmt.Printf("Failed to sort: %v\n", err)
		return
	}

	sorted, _ := os.ReadFile(output)
	fmt.Print(string(sorted))
	fmt.Printf("records in: %d, out: %d, duplicates: %d\n", res.RecordsIn, res.RecordsOut, res.Duplicates)

	// Output:
	// apple
	// banana
	// cherry
	// records in: 4, out: 3, duplicates: 1
}

// ExampleWithComparator sorts JSON lines by a nested field.
func ExampleWithComparator() {
	dir, err := os.MkdirTemp("", "xsort-example-*")
	if err != nil {
		fmt.Printf("Failed to create temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "certs.jsonl")
	output := filepath.Join(dir, "certs.sorted.jsonl")
	lines := `{"data":{"leaf_cert":{"fingerprint":"CC"}},"seen":1}
{"data":{"leaf_cert":{"fingerprint":"AA"}},"seen":2}
{"data":{"leaf_cert":{"fingerprint":"CC"}},"seen":3}
{"data":{"leaf_cert":{"fingerprint":"BB"}},"seen":4}
`
	if err := os.WriteFile(input, []byte(lines), 0o600); err != nil {
		fmt.Printf("Failed to write input: %v\n", err)
		return
	}

	byFingerprint := record.JSONKey("data", "leaf_cert", "fingerprint")
	_, err = xsort.Run(context.Background(), input, output,
		xsort.WithComparator(byFingerprint),
		xsort.WithEqual(record.SameOrder(byFingerprint)), // One line per fingerprint
		xsort.WithTempDir(dir),
	)
	if err != nil {
		fmt.Printf("Failed to sort: %v\n", err)
		return
	}

	sorted, _ := os.ReadFile(output)
	fmt.Print(string(sorted))

	// Output:
	// {"data":{"leaf_cert":{"fingerprint":"AA"}},"seen":2}
	// {"data":{"leaf_cert":{"fingerprint":"BB"}},"seen":4}
	// {"data":{"leaf_cert":{"fingerprint":"CC"}},"seen":1}
}
