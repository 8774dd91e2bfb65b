// Package phase tracks interactive phase correction per dataset dimension
// and commits it to the PHASE operation of a script store.
//
// While a control is dragged the displayed vector is rotated by a delta on
// top of whatever phase the dataset already carries. Committing records the
// absolute phase, delta plus applied, and clears the delta.
package phase

import (
	"fmt"
	"math"
	"strconv"
	"sync"

	"nmrfid/internal/models"
	"nmrfid/pkg/script"
)

// OpName is the operation the tracker reads and writes.
const OpName = "PHASE"

// AppliedPhaser reports the phase a dataset dimension already carries.
type AppliedPhaser interface {
	AppliedPhase(dim int) (ph0, ph1 float64)
}

// AppliedFunc adapts a function to AppliedPhaser.
type AppliedFunc func(dim int) (ph0, ph1 float64)

// AppliedPhase calls f.
func (f AppliedFunc) AppliedPhase(dim int) (float64, float64) { return f(dim) }

type noneApplied struct{}

func (noneApplied) AppliedPhase(int) (float64, float64) { return 0, 0 }

// Values is a zero and first order phase pair in degrees.
type Values struct {
	Ph0 float64
	Ph1 float64
}

type dimState struct {
	delta Values
	dimag bool
	pivot float64
	axis  models.Axis
}

// Tracker holds the live phase state of every dataset dimension. It is safe
// for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	store   *script.Store
	applied AppliedPhaser
	dims    map[int]*dimState
	active  int
}

// NewTracker returns a tracker committing into store. A nil applied is
// treated as a dataset without any phase applied.
func NewTracker(store *script.Store, applied AppliedPhaser) *Tracker {
	if applied == nil {
		applied = noneApplied{}
	}
	return &Tracker{
		store:   store,
		applied: applied,
		dims:    make(map[int]*dimState),
	}
}

// state returns the state of dim, creating it. Callers hold mu.
func (t *Tracker) state(dim int) *dimState {
	s, ok := t.dims[dim]
	if !ok {
		s = &dimState{}
		t.dims[dim] = s
	}
	return s
}

// SetDimension makes dim the active dimension and records its axis.
func (t *Tracker) SetDimension(dim int, axis models.Axis) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = dim
	t.state(dim).axis = axis
}

// Dimension returns the active dimension.
func (t *Tracker) Dimension() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// SetLiveDelta stores the uncommitted delta of the active dimension.
func (t *Tracker) SetLiveDelta(ph0, ph1 float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(t.active).delta = Values{Ph0: ph0, Ph1: ph1}
}

// LiveDelta returns the uncommitted delta of the active dimension.
func (t *Tracker) LiveDelta() Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(t.active).delta
}

// Delta returns the uncommitted delta of dim.
func (t *Tracker) Delta(dim int) Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(dim).delta
}

// ToAbsolute returns the delta of dim plus the phase the dataset already
// carries.
func (t *Tracker) ToAbsolute(dim int) Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.absolute(dim)
}

func (t *Tracker) absolute(dim int) Values {
	d := t.state(dim).delta
	ph0, ph1 := t.applied.AppliedPhase(dim)
	return Values{Ph0: d.Ph0 + ph0, Ph1: d.Ph1 + ph1}
}

// SetDimag sets the dimag flag written with the next commit of dim.
func (t *Tracker) SetDimag(dim int, dimag bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(dim).dimag = dimag
}

// Commit writes the absolute phase of dim as a PHASE operation, replacing
// any earlier one, and clears the live delta.
func (t *Tracker) Commit(dim int) (Values, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	abs := t.absolute(dim)
	s := t.state(dim)
	text := fmt.Sprintf("%s(ph0=%s,ph1=%s,dimag=%s)", OpName,
		script.FormatFloat(round(abs.Ph0)), script.FormatFloat(round(abs.Ph1)), script.FormatBool(s.dimag))
	if _, err := t.store.SetOperation(script.DimKey(dim), text, false, -1); err != nil {
		return Values{}, fmt.Errorf("committing phase of dimension %d: %w", dim+1, err)
	}
	s.delta = Values{}
	return abs, nil
}

// ReadCommitted parses the PHASE operation of dim. A missing operation
// yields zero phases and dimag false.
func (t *Tracker) ReadCommitted(dim int) (Values, bool, error) {
	ops := t.store.Operations(script.DimKey(dim))
	for _, text := range ops {
		if script.OpName(text) != OpName {
			continue
		}
		op, err := script.ParseOperation(text)
		if err != nil {
			return Values{}, false, err
		}
		return parsePhase(op)
	}
	return Values{}, false, nil
}

func parsePhase(op script.Operation) (Values, bool, error) {
	var v Values
	targets := []*float64{&v.Ph0, &v.Ph1}
	names := []string{"ph0", "ph1"}
	pos := 0
	for _, a := range op.Args {
		switch {
		case a.Name == "dimag":
			continue
		case a.Name == "" && pos < len(targets):
			if err := parseInto(targets[pos], names[pos], a.Value); err != nil {
				return Values{}, false, err
			}
			pos++
		case a.Name == "ph0":
			if err := parseInto(&v.Ph0, a.Name, a.Value); err != nil {
				return Values{}, false, err
			}
		case a.Name == "ph1":
			if err := parseInto(&v.Ph1, a.Name, a.Value); err != nil {
				return Values{}, false, err
			}
		}
	}
	if _, present := op.Arg("dimag"); present {
		dimag, ok := op.Bool("dimag")
		if !ok {
			return Values{}, false, fmt.Errorf("%w: %s dimag is not a bool", script.ErrInvalidOperation, OpName)
		}
		return v, dimag, nil
	}
	return v, false, nil
}

func parseInto(dst *float64, name, value string) error {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%w: %s %s=%q", script.ErrInvalidOperation, OpName, name, value)
	}
	*dst = f
	return nil
}

// SetPivot moves the pivot of the active dimension to an axis position and
// returns the pivot as a fraction of the axis.
func (t *Tracker) SetPivot(position float64) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(t.active)
	s.pivot = pivotFraction(s.axis, position)
	return s.pivot
}

// Pivot returns the pivot fraction of the active dimension.
func (t *Tracker) Pivot() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state(t.active).pivot
}

// PivotPosition returns the pivot of the active dimension in axis units.
func (t *Tracker) PivotPosition() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(t.active)
	if s.axis.Size <= 1 {
		return s.axis.Start
	}
	return s.axis.ValueAt(s.pivot * float64(s.axis.Size-1))
}

// AdjustPh1 changes the first order delta of the active dimension by d,
// compensating the zero order delta so the rotation is anchored at the
// pivot. It returns the new delta.
func (t *Tracker) AdjustPh1(d float64) Values {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(t.active)
	s.delta.Ph0 -= d * s.pivot
	s.delta.Ph1 += d
	return s.delta
}

// Reset clears the delta of dim.
func (t *Tracker) Reset(dim int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(dim).delta = Values{}
}

func pivotFraction(axis models.Axis, position float64) float64 {
	if axis.Size <= 1 {
		return 0
	}
	f := axis.IndexOf(position) / float64(axis.Size-1)
	return math.Max(0, math.Min(1, f))
}

// round trims float noise from dragged values before they are written.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
