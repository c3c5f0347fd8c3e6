// Package failure holds the error taxonomy shared by every stage of a sort
// run. Errors are returned as *Error values that unwrap to both a sentinel
// kind and the underlying cause, so callers can write
//
//	if errors.Is(err, failure.ErrCorruptChunkFile) { ... }
//
// and still reach the original os or io error.
package failure

import (
	"errors"
	"strconv"
	"strings"
)

var (
	ErrInputNotFound    = errors.New("input not found")
	ErrIO               = errors.New("i/o error")
	ErrMemoryExceeded   = errors.New("chunk exceeds memory budget")
	ErrCorruptChunkFile = errors.New("corrupt chunk file")
	ErrWorkerFailure    = errors.New("worker failure")
	ErrInvalidOption    = errors.New("invalid option")
)

// Stage names the part of the pipeline an error came from.
type Stage string

const (
	StageChunk    Stage = "chunk"
	StageSort     Stage = "sort"
	StageSchedule Stage = "schedule"
	StageMerge    Stage = "merge"
	StagePipeline Stage = "pipeline"
)

// Error describes a failed stage. Chunk is -1 when no chunk is implicated.
type Error struct {
	Stage Stage
	Kind  error
	Path  string
	Chunk int
	Err   error
}

// New returns an error of the given kind raised by stage.
func New(stage Stage, kind, err error) *Error {
	return &Error{Stage: stage, Kind: kind, Chunk: -1, Err: err}
}

// WithPath returns a copy of e naming the implicated file.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// WithChunk returns a copy of e naming the implicated chunk.
func (e *Error) WithChunk(index int) *Error {
	c := *e
	c.Chunk = index
	return &c
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("xsort: ")
	b.WriteString(string(e.Stage))
	b.WriteString(" stage")
	if e.Chunk >= 0 {
		b.WriteString(": chunk ")
		b.WriteString(strconv.Itoa(e.Chunk))
	}
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Err != nil && e.Err != e.Kind {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
