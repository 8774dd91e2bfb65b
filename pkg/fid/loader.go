package fid

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"nmrfid/internal/models"
	"nmrfid/pkg/combine"
	"nmrfid/pkg/vecgroup"
)

var _ Reader = (*RawReader)(nil)

// Loader reads vector groups from a Reader and combines them into complex
// vectors.
type Loader struct {
	reader   Reader
	counter  *vecgroup.Counter
	mode     combine.Mode
	numCores int
	logger   *zap.Logger
}

// NewLoader builds the group map of r's current layout. numCores bounds
// LoadAll's parallelism, 0 means all CPUs.
func NewLoader(r Reader, modes []combine.Mode, numCores int, logger *zap.Logger) (*Loader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if numCores <= 0 {
		numCores = runtime.NumCPU()
	}
	desc := r.Descriptor()
	counter, err := vecgroup.New(desc, modes)
	if err != nil {
		return nil, err
	}

	l := &Loader{
		reader:   r,
		counter:  counter,
		mode:     combine.None,
		numCores: numCores,
		logger:   logger,
	}
	// Pairs are combined with the mode of the one complex indirect
	// dimension. Real direct dimensions only support plain pairing.
	if counter.GroupSize() == combine.Inputs && desc.IsComplex(0) {
		for dim := 1; dim < desc.NDim(); dim++ {
			if desc.IsComplex(dim) {
				l.mode = counter.Mode(dim)
				break
			}
		}
	}
	return l, nil
}

// Counter returns the group map in use.
func (l *Loader) Counter() *vecgroup.Counter { return l.counter }

// ReadGroup reads the physical vectors of group i.
func (l *Loader) ReadGroup(ctx context.Context, i int) ([]*models.Vector, error) {
	g, err := l.counter.Group(i)
	if err != nil {
		return nil, err
	}
	vecs := make([]*models.Vector, len(g.Offsets))
	for m, off := range g.Offsets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := &models.Vector{}
		if err := l.reader.ReadVector(0, off, v); err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		vecs[m] = v
	}
	return vecs, nil
}

// Load reads group i and combines it. Single-vector groups are returned as
// read. Pairs become one complex vector. Larger groups are returned
// uncombined; their indirect dimensions are combined by the executor.
func (l *Loader) Load(ctx context.Context, i int) ([]*models.Vector, error) {
	vecs, err := l.ReadGroup(ctx, i)
	if err != nil {
		return nil, err
	}
	if len(vecs) != combine.Inputs {
		return vecs, nil
	}
	c, err := combine.Combine(l.mode, [][]float64{vecs[0].Data, vecs[1].Data})
	if err != nil {
		return nil, fmt.Errorf("group %d: %w", i, err)
	}
	return []*models.Vector{{Data: combine.Interleave(c), Complex: true, Offset: -1}}, nil
}

// LoadAll loads every group in parallel. Results are indexed by group.
func (l *Loader) LoadAll(ctx context.Context) ([][]*models.Vector, error) {
	total := l.counter.TotalGroups()
	out := make([][]*models.Vector, total)
	l.logger.Debug("loading vector groups",
		zap.Int("groups", total),
		zap.Int("groupSize", l.counter.GroupSize()),
		zap.Stringer("mode", l.mode),
		zap.Int("workers", l.numCores))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.numCores)
	for i := 0; i < total; i++ {
		i := i
		g.Go(func() error {
			vecs, err := l.Load(gctx, i)
			if err != nil {
				return err
			}
			out[i] = vecs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		l.logger.Warn("loading vector groups failed", zap.Error(err))
		return nil, err
	}
	l.logger.Debug("loaded vector groups", zap.Int("groups", total))
	return out, nil
}
