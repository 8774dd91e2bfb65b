// Package executor runs processing scripts through an external operation
// pipeline, for single-vector previews and for cancellable batch runs.
package executor

import (
	"context"
	"fmt"

	"nmrfid/internal/models"
	"nmrfid/pkg/script"
)

// Executor performs the numeric work of a script on a set of vectors. A
// failing operation should be reported as an *ExecutionError.
type Executor interface {
	Execute(ctx context.Context, text string, vecs []*models.Vector) error
}

// Func adapts a function to Executor.
type Func func(ctx context.Context, text string, vecs []*models.Vector) error

// Execute calls f.
func (f Func) Execute(ctx context.Context, text string, vecs []*models.Vector) error {
	return f(ctx, text, vecs)
}

// ExecutionError identifies the operation that failed so the caller can
// highlight it.
type ExecutionError struct {
	Key script.Key
	Op  string

	// Index is the 1-based position of Op in Key's operation list.
	Index int

	Err error
}

func (e *ExecutionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s #%d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s #%d in %s: %v", e.Op, e.Index, e.Key, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Locate builds an ExecutionError for the index-th (0-based) operation of
// key in snap.
func Locate(snap script.Snapshot, key script.Key, index int, err error) *ExecutionError {
	e := &ExecutionError{Key: key, Index: index + 1, Err: err}
	if ops := snap.Ops[key]; index >= 0 && index < len(ops) {
		e.Op = script.OpName(ops[index])
	}
	return e
}

// RunInteractive executes text on vecs. If the executor fails, every vector
// is restored to its state before the run.
func RunInteractive(ctx context.Context, exec Executor, text string, vecs []*models.Vector) error {
	saved := make([]*models.Vector, len(vecs))
	for i, v := range vecs {
		saved[i] = v.Clone()
	}
	if err := exec.Execute(ctx, text, vecs); err != nil {
		for i, v := range vecs {
			*v = *saved[i]
		}
		return err
	}
	return nil
}
