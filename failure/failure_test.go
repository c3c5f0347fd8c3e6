package failure_test

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/davidvella/xsort/failure"
	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	tests := []struct {
		name    string
		err     *failure.Error
		wantMsg string
		wantIs  []error
	}{
		{
			name:    "kind and cause",
			err:     failure.New(failure.StageMerge, failure.ErrCorruptChunkFile, errors.New("record 3 out of order")).WithPath("chunk-000001.run"),
			wantMsg: "xsort: merge stage: chunk-000001.run: corrupt chunk file: record 3 out of order",
			wantIs:  []error{failure.ErrCorruptChunkFile},
		},
		{
			name:    "chunk index",
			err:     failure.New(failure.StageSort, failure.ErrIO, fs.ErrPermission).WithChunk(4),
			wantMsg: "xsort: sort stage: chunk 4: i/o error: permission denied",
			wantIs:  []error{failure.ErrIO, fs.ErrPermission},
		},
		{
			name:    "cause equals kind",
			err:     failure.New(failure.StagePipeline, failure.ErrInvalidOption, failure.ErrInvalidOption),
			wantMsg: "xsort: pipeline stage: invalid option",
			wantIs:  []error{failure.ErrInvalidOption},
		},
		{
			name:    "cancellation",
			err:     failure.New(failure.StageSchedule, failure.ErrWorkerFailure, context.Canceled).WithChunk(0),
			wantMsg: "xsort: schedule stage: chunk 0: worker failure: context canceled",
			wantIs:  []error{failure.ErrWorkerFailure, context.Canceled},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
			wrapped := fmt.Errorf("outer: %w", tt.err)
			for _, target := range tt.wantIs {
				assert.ErrorIs(t, wrapped, target)
			}
			fe, ok := failure.As(wrapped)
			assert.True(t, ok)
			assert.Equal(t, tt.err.Stage, fe.Stage)
		})
	}
}

func TestWithDoesNotMutate(t *testing.T) {
	base := failure.New(failure.StageChunk, failure.ErrIO, nil)
	withChunk := base.WithChunk(2)
	assert.Equal(t, -1, base.Chunk)
	assert.Equal(t, 2, withChunk.Chunk)

	_, ok := failure.As(errors.New("plain"))
	assert.False(t, ok)
}
