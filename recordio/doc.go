// Package recordio reads and writes streams of delimiter-terminated records.
// It is the only place that knows how records are laid out on disk, both for
// the input file and for the sorted chunk files produced during a run.
//
// Basic usage:
//
//	w := recordio.NewWriter(file, '\n')
//	for _, rec := range sorted {
//	    if err := w.Write(rec); err != nil {
//	        return err
//	    }
//	}
//	if err := w.Flush(); err != nil {
//	    return err
//	}
//
//	r := recordio.NewReader(file, '\n', 0)
//	for rec := range r.All() {
//	    fmt.Printf("%s\n", rec)
//	}
//	if err := r.Err(); err != nil {
//	    return err
//	}
//
// Records handed out by Reader alias its internal buffer. Callers that keep a
// record past the next read must copy it.
package recordio
