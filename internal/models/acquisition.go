package models

import (
	"fmt"
)

// AcquisitionDescriptor holds the read-only shape of a raw multi-dimensional
// FID. Index 0 is the directly acquired dimension.
type AcquisitionDescriptor struct {
	// Sizes are the raw per-dimension point counts. For indirect dimensions
	// this is the number of physical vectors along that dimension, phase
	// cycle and array members included.
	Sizes []int

	// Complex flags each dimension as complex (true) or real.
	Complex []bool

	// ArraySizes holds the array sub-size per dimension, 0 if not arrayed.
	ArraySizes []int

	// AcqOrder is the raw acquisition-order token list, e.g. ["d2", "p1"].
	AcqOrder []string
}

// NDim returns the number of dimensions.
func (d *AcquisitionDescriptor) NDim() int {
	return len(d.Sizes)
}

// ArraySize returns the array size of dim, or 0 when dim is not arrayed.
func (d *AcquisitionDescriptor) ArraySize(dim int) int {
	if dim < 0 || dim >= len(d.ArraySizes) {
		return 0
	}
	return d.ArraySizes[dim]
}

// IsComplex reports whether dim is complex.
func (d *AcquisitionDescriptor) IsComplex(dim int) bool {
	if dim < 0 || dim >= len(d.Complex) {
		return false
	}
	return d.Complex[dim]
}

// Validate checks that the per-dimension slices agree with each other.
func (d *AcquisitionDescriptor) Validate() error {
	n := len(d.Sizes)
	if n == 0 {
		return fmt.Errorf("descriptor has no dimensions")
	}
	if len(d.Complex) != n {
		return fmt.Errorf("descriptor has %d complex flags for %d dimensions", len(d.Complex), n)
	}
	if len(d.ArraySizes) != 0 && len(d.ArraySizes) != n {
		return fmt.Errorf("descriptor has %d array sizes for %d dimensions", len(d.ArraySizes), n)
	}
	for i, s := range d.Sizes {
		if s <= 0 {
			return fmt.Errorf("dimension %d has non-positive size %d", i+1, s)
		}
	}
	for i, a := range d.ArraySizes {
		if a < 0 {
			return fmt.Errorf("dimension %d has negative array size %d", i+1, a)
		}
	}
	return nil
}

// Clone returns a deep copy, used when a setter has to re-derive state
// without touching the descriptor that is currently in use.
func (d *AcquisitionDescriptor) Clone() *AcquisitionDescriptor {
	c := &AcquisitionDescriptor{
		Sizes:    append([]int(nil), d.Sizes...),
		Complex:  append([]bool(nil), d.Complex...),
		AcqOrder: append([]string(nil), d.AcqOrder...),
	}
	if d.ArraySizes != nil {
		c.ArraySizes = append([]int(nil), d.ArraySizes...)
	}
	return c
}

// VectorGroup is the set of physical vectors that together form one logical
// hypercomplex sample.
type VectorGroup struct {
	// Index is the linear group index.
	Index int

	// Offsets are the physical vector offsets in phase-cycle order.
	Offsets []int
}

// Vector is one in-memory time or frequency domain vector.
type Vector struct {
	// Data holds the samples, interleaved re/im when Complex is set.
	Data []float64

	// Complex tells how Data is laid out.
	Complex bool

	// Offset is the physical vector offset the data was read from, -1 for
	// combined vectors that span several offsets.
	Offset int
}

// Len returns the number of points (complex points when Complex is set).
func (v *Vector) Len() int {
	if v.Complex {
		return len(v.Data) / 2
	}
	return len(v.Data)
}

// Clone returns a deep copy of the vector.
func (v *Vector) Clone() *Vector {
	return &Vector{
		Data:    append([]float64(nil), v.Data...),
		Complex: v.Complex,
		Offset:  v.Offset,
	}
}

// Axis maps point indices to axis units (ppm, Hz or seconds) for one
// dataset dimension.
type Axis struct {
	// Size is the number of points along the axis.
	Size int

	// Start is the axis value at index 0.
	Start float64

	// Step is the change in axis value per point. Frequency axes usually
	// have a negative step.
	Step float64
}

// IndexOf converts an axis position to a fractional point index.
func (a Axis) IndexOf(position float64) float64 {
	if a.Step == 0 {
		return 0
	}
	return (position - a.Start) / a.Step
}

// ValueAt converts a point index to an axis position.
func (a Axis) ValueAt(index float64) float64 {
	return a.Start + index*a.Step
}
