package main

import (
	"fmt"
	"strconv"

	"github.com/davidvella/xsort"
	"github.com/davidvella/xsort/chunk"
	"github.com/davidvella/xsort/codec"
	"github.com/davidvella/xsort/failure"
	"github.com/davidvella/xsort/merge"
	"github.com/davidvella/xsort/monitoring"
	"github.com/davidvella/xsort/record"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSortCmd(v *viper.Viper) *cobra.Command {
	sortCmd := &cobra.Command{
		Use:   "sort INPUT OUTPUT",
		Short: "Sort INPUT into OUTPUT",
		Long: `Sort the records of INPUT into OUTPUT. OUTPUT is replaced atomically
and left untouched if sorting fails.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := sortOptions(cmd, v)
			if err != nil {
				return err
			}
			res, err := xsort.Run(cmd.Context(), args[0], args[1], opts...)
			if err != nil {
				return err
			}
			if v.GetString("report") != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "reported %d duplicate groups holding %d records into %s\n",
					res.Groups, res.RecordsOut, args[1])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sorted %d records into %s (%d chunks, %d duplicates dropped, %s)\n",
				res.RecordsOut, args[1], res.Chunks, res.Duplicates, humanize.IBytes(uint64(res.BytesOut)))
			return nil
		},
	}

	f := sortCmd.Flags()
	f.String("budget", "1GiB", "memory budget shared by all workers")
	f.Int("workers", 1, "chunks sorted in parallel")
	f.Bool("dedupe", true, "drop duplicate records")
	f.String("delimiter", `\n`, `record delimiter: one character, an escape such as \0 or \t, or a hex byte such as 0x1e`)
	f.String("compare", "bytes", "order: bytes, foldcase, reverse or json:<dotted.path>, '-' prefix reverses")
	f.String("equal", "exact", "duplicate test: exact, fold or order")
	f.String("codec", "none", "temporary file compression: none, zstd, lz4 or s2")
	f.String("tmp-dir", "", "directory for temporary files (default system temp dir)")
	f.String("max-record-size", humanize.IBytes(chunk.DefaultMaxRecordSize), "largest record accepted")
	f.Int("fan-in", merge.DefaultFanIn, "most files merged at once")
	f.String("frontier", "loser", "merge frontier: loser or btree")
	f.Bool("verify", true, "check temporary files are sorted while merging")
	f.String("report", "", "write only groups of records that compare equal: lines or json:<dotted.path>")
	f.String("report-field", "records", "field holding the records of a json report group")
	return sortCmd
}

func sortOptions(cmd *cobra.Command, v *viper.Viper) ([]xsort.Option, error) {
	budget, err := parseSize("budget", v.GetString("budget"))
	if err != nil {
		return nil, err
	}
	maxRecord, err := parseSize("max-record-size", v.GetString("max-record-size"))
	if err != nil {
		return nil, err
	}
	delim, err := parseDelimiter(v.GetString("delimiter"))
	if err != nil {
		return nil, invalid("delimiter", err)
	}
	compare, err := record.ParseCompare(v.GetString("compare"))
	if err != nil {
		return nil, invalid("compare", err)
	}
	equal, err := record.ParseEqual(v.GetString("equal"), compare)
	if err != nil {
		return nil, invalid("equal", err)
	}
	c, err := codec.Parse(v.GetString("codec"))
	if err != nil {
		return nil, invalid("codec", err)
	}
	frontier, err := merge.ParseFrontier(v.GetString("frontier"))
	if err != nil {
		return nil, invalid("frontier", err)
	}
	logger, err := monitoring.NewLogger(v.GetString("log-level"), v.GetString("log-format"), cmd.ErrOrStderr())
	if err != nil {
		return nil, invalid("log", err)
	}

	opts := []xsort.Option{
		xsort.WithBudget(budget),
		xsort.WithWorkers(v.GetInt("workers")),
		xsort.WithDedupe(v.GetBool("dedupe")),
		xsort.WithDelimiter(delim),
		xsort.WithComparator(compare),
		xsort.WithEqual(equal),
		xsort.WithCodec(c),
		xsort.WithMaxRecordSize(maxRecord),
		xsort.WithFanIn(v.GetInt("fan-in")),
		xsort.WithFrontier(frontier),
		xsort.WithVerify(v.GetBool("verify")),
		xsort.WithLogger(logger),
	}
	if name := v.GetString("report"); name != "" {
		format, err := record.ParseGroupFormat(name, v.GetString("report-field"), delim)
		if err != nil {
			return nil, invalid("report", err)
		}
		opts = append(opts, xsort.WithDuplicateGroups(format))
	}
	if dir := v.GetString("tmp-dir"); dir != "" {
		opts = append(opts, xsort.WithTempDir(dir))
	}
	return opts, nil
}

func invalid(flag string, err error) error {
	return failure.New(failure.StagePipeline, failure.ErrInvalidOption, fmt.Errorf("--%s: %w", flag, err))
}

func parseSize(flag, s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, invalid(flag, err)
	}
	if n == 0 || n > 1<<62 {
		return 0, invalid(flag, fmt.Errorf("size %q out of range", s))
	}
	return int64(n), nil
}

// parseDelimiter accepts a single byte, a Go escape such as \n or \0, or a
// hex byte such as 0x1e.
func parseDelimiter(s string) (byte, error) {
	switch {
	case len(s) == 1:
		return s[0], nil
	case s == `\0`:
		return 0, nil
	case len(s) > 2 && (s[:2] == "0x" || s[:2] == "0X"):
		n, err := strconv.ParseUint(s[2:], 16, 8)
		if err != nil {
			return 0, fmt.Errorf("bad hex delimiter %q", s)
		}
		return byte(n), nil
	}
	u, err := strconv.Unquote(`"` + s + `"`)
	if err != nil || len(u) != 1 {
		return 0, fmt.Errorf("delimiter %q must be a single byte", s)
	}
	return u[0], nil
}
