package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nmrfid/internal/models"
	"nmrfid/pkg/script"
)

// Runner generates scripts from a store and hands them to an executor.
type Runner struct {
	exec   Executor
	store  *script.Store
	logger *zap.Logger
}

// NewRunner returns a runner. A nil logger disables logging.
func NewRunner(exec Executor, store *script.Store, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{exec: exec, store: store, logger: logger}
}

// Preview runs the interactive script on vecs, restoring them on failure.
func (r *Runner) Preview(ctx context.Context, h script.Header, desc *models.AcquisitionDescriptor, vecs []*models.Vector) error {
	text := script.Interactive(h, desc, r.store.Snapshot())
	if err := RunInteractive(ctx, r.exec, text, vecs); err != nil {
		r.logger.Debug("preview failed", zap.Error(err))
		return err
	}
	return nil
}

// BatchResult reports a batch run. When Canceled is set the run stopped
// between files: outputs listed in Completed are whole, later files were
// never processed and nothing already written is rolled back.
type BatchResult struct {
	RunID     string
	Completed []string
	Canceled  bool
	Elapsed   time.Duration
}

// Batch processes out from the store's current operations. Without files
// the single FID in h is processed into the dataset out. With files each
// one is executed in turn and ctx is checked between files; cancellation is
// reported through BatchResult, not as an error.
//
// The store is snapshotted before the first file, so edits made during the
// run do not affect it.
func (r *Runner) Batch(ctx context.Context, h script.Header, desc *models.AcquisitionDescriptor, out string, arr *script.Arrayed) (*BatchResult, error) {
	snap := r.store.Snapshot()
	res := &BatchResult{RunID: uuid.NewString()}
	log := r.logger.With(zap.String("run", res.RunID))
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	if arr == nil || len(arr.Files) == 0 {
		log.Info("batch started", zap.String("fid", h.FIDPath), zap.String("output", out))
		if err := ctx.Err(); err != nil {
			res.Canceled = true
			return res, nil
		}
		text := script.Batch(h, desc, snap, out, nil)
		if err := r.exec.Execute(ctx, text, nil); err != nil {
			if canceled(ctx, err) {
				res.Canceled = true
				return res, nil
			}
			log.Error("batch failed", zap.Error(err))
			return res, err
		}
		res.Completed = append(res.Completed, script.ToSlash(out))
		log.Info("batch finished")
		return res, nil
	}

	log.Info("batch started",
		zap.Int("files", len(arr.Files)),
		zap.Bool("combine", arr.Combine),
		zap.String("output", out))
	for i, file := range arr.Files {
		if ctx.Err() != nil {
			res.Canceled = true
			log.Info("batch canceled", zap.Int("completed", len(res.Completed)), zap.Int("files", len(arr.Files)))
			return res, nil
		}
		text, err := script.BatchFile(h, desc, snap, out, *arr, i)
		if err != nil {
			return res, err
		}
		if err := r.exec.Execute(ctx, text, nil); err != nil {
			if canceled(ctx, err) {
				res.Canceled = true
				log.Info("batch canceled", zap.Int("completed", len(res.Completed)), zap.Int("files", len(arr.Files)))
				return res, nil
			}
			log.Error("batch file failed", zap.String("file", file), zap.Int("index", i), zap.Error(err))
			return res, fmt.Errorf("file %d (%s): %w", i+1, script.ToSlash(file), err)
		}
		if arr.Combine {
			res.Completed = append(res.Completed, script.ToSlash(file))
		} else {
			res.Completed = append(res.Completed, script.OutputPath(out, file))
		}
		log.Debug("batch file done", zap.String("file", file), zap.Int("index", i))
	}
	log.Info("batch finished", zap.Int("files", len(res.Completed)))
	return res, nil
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}
