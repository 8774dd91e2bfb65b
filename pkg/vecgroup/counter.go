// Package vecgroup maps linear group indices onto the physical vectors of a
// raw multi-dimensional FID.
//
// A raw file is a flat sequence of directly acquired vectors. The
// acquisition order describes the nested loops that wrote them; the vector
// offset is the mixed-radix number formed by the loop indices, slowest loop
// first. A group is every phase-cycle member sharing the same indirect
// increment and array indices.
package vecgroup

import (
	"errors"
	"fmt"

	"nmrfid/internal/models"
	"nmrfid/pkg/acqorder"
	"nmrfid/pkg/combine"
)

var (
	// ErrConfig is wrapped by errors caused by an inconsistent descriptor.
	ErrConfig = acqorder.ErrConfig

	// ErrIndexOutOfRange is returned for group or vector indices outside the
	// file.
	ErrIndexOutOfRange = errors.New("index out of range")
)

type loop struct {
	tok    acqorder.Token
	extent int
	stride int
}

// Counter is an immutable index map for one acquisition descriptor. It is
// safe for concurrent use.
type Counter struct {
	desc  *models.AcquisitionDescriptor
	order acqorder.Order
	modes []combine.Mode

	loops       []loop
	groupLoops  []int
	phaseLoops  []int
	groupSize   int
	totalGroups int
	totalVecs   int
}

// New validates desc and derives the index map. modes holds one
// combination mode per indirect dimension (modes[0] belongs to dataset
// dimension 2); missing entries default to hypercomplex.
func New(desc *models.AcquisitionDescriptor, modes []combine.Mode) (*Counter, error) {
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	nDim := desc.NDim()
	if len(modes) > nDim-1 {
		return nil, fmt.Errorf("%w: %d combination modes for %d indirect dimensions", ErrConfig, len(modes), nDim-1)
	}

	var order acqorder.Order
	if len(desc.AcqOrder) == 0 {
		order = acqorder.Default(nDim)
	} else {
		var err error
		order, err = acqorder.FromStrings(desc.AcqOrder, nDim)
		if err != nil {
			return nil, err
		}
	}

	c := &Counter{
		desc:  desc.Clone(),
		order: order,
		modes: make([]combine.Mode, nDim-1),
	}
	for i := range c.modes {
		c.modes[i] = combine.Default
		if i < len(modes) {
			c.modes[i] = modes[i]
		}
	}
	if err := c.derive(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Counter) derive() error {
	nDim := c.desc.NDim()
	tokens := c.order.Tokens()

	// Arrayed dimensions without an explicit token loop outermost, complex
	// dimensions without a phase token loop innermost.
	var lead []acqorder.Token
	for dim := 1; dim < nDim; dim++ {
		if c.desc.ArraySize(dim) > 1 && !c.order.HasArray(dim) {
			lead = append(lead, acqorder.Token{Kind: acqorder.Array, Index: dim + 1})
		}
	}
	tokens = append(lead, tokens...)
	for dim := nDim - 1; dim >= 1; dim-- {
		if c.desc.IsComplex(dim) && !c.order.HasPhase(dim) {
			tokens = append(tokens, acqorder.Token{Kind: acqorder.Phase, Index: dim})
		}
	}

	c.loops = make([]loop, len(tokens))
	c.totalVecs = 1
	c.groupSize = 1
	for i, tok := range tokens {
		dim := tok.Dim()
		phases := c.phases(dim)
		arr := c.arrayFactor(dim)
		size := c.desc.Sizes[dim]
		if size%(phases*arr) != 0 {
			return fmt.Errorf("%w: dimension %d size %d is not a multiple of %d phases x %d array steps",
				ErrConfig, dim+1, size, phases, arr)
		}
		var extent int
		switch tok.Kind {
		case acqorder.Phase:
			extent = phases
			c.groupSize *= extent
			c.phaseLoops = append(c.phaseLoops, i)
		case acqorder.Array:
			extent = arr
			c.groupLoops = append(c.groupLoops, i)
		default:
			extent = size / (phases * arr)
			c.groupLoops = append(c.groupLoops, i)
		}
		c.loops[i] = loop{tok: tok, extent: extent}
		c.totalVecs *= extent
	}

	stride := 1
	for i := len(c.loops) - 1; i >= 0; i-- {
		c.loops[i].stride = stride
		stride *= c.loops[i].extent
	}
	c.totalGroups = c.totalVecs / c.groupSize
	return nil
}

func (c *Counter) phases(dim int) int {
	if c.desc.IsComplex(dim) {
		return combine.Inputs
	}
	return 1
}

func (c *Counter) arrayFactor(dim int) int {
	if a := c.desc.ArraySize(dim); a > 1 {
		return a
	}
	return 1
}

// Descriptor returns a copy of the descriptor the counter was built from.
func (c *Counter) Descriptor() *models.AcquisitionDescriptor {
	return c.desc.Clone()
}

// Order returns the validated acquisition order, without implicit tokens.
func (c *Counter) Order() acqorder.Order { return c.order }

// Mode returns the combination mode of the 0-based dataset dimension dim.
func (c *Counter) Mode(dim int) combine.Mode {
	if dim < 1 || dim > len(c.modes) {
		return combine.Default
	}
	return c.modes[dim-1]
}

// Modes returns a copy of the per indirect dimension modes.
func (c *Counter) Modes() []combine.Mode {
	return append([]combine.Mode(nil), c.modes...)
}

// GroupSize is the number of physical vectors forming one sample.
func (c *Counter) GroupSize() int { return c.groupSize }

// TotalGroups is the number of groups in the file.
func (c *Counter) TotalGroups() int { return c.totalGroups }

// TotalVectors is the number of physical vectors in the file.
func (c *Counter) TotalVectors() int { return c.totalVecs }

// Increments returns the number of sampled increments of dim, phase and
// array factors removed.
func (c *Counter) Increments(dim int) int {
	if dim < 1 || dim >= c.desc.NDim() {
		return 0
	}
	return c.desc.Sizes[dim] / (c.phases(dim) * c.arrayFactor(dim))
}

// Group returns the physical vectors of group i in phase-cycle order.
func (c *Counter) Group(i int) (models.VectorGroup, error) {
	if i < 0 || i >= c.totalGroups {
		return models.VectorGroup{}, fmt.Errorf("%w: group %d of %d", ErrIndexOutOfRange, i, c.totalGroups)
	}

	base := 0
	rem := i
	for j := len(c.groupLoops) - 1; j >= 0; j-- {
		l := c.loops[c.groupLoops[j]]
		base += (rem % l.extent) * l.stride
		rem /= l.extent
	}

	offsets := make([]int, c.groupSize)
	for m := range offsets {
		off := base
		rem := m
		for j := len(c.phaseLoops) - 1; j >= 0; j-- {
			l := c.loops[c.phaseLoops[j]]
			off += (rem % l.extent) * l.stride
			rem /= l.extent
		}
		offsets[m] = off
	}
	return models.VectorGroup{Index: i, Offsets: offsets}, nil
}

// Locate is the inverse of Group: it returns the group holding the physical
// vector offset and the vector's position within that group.
func (c *Counter) Locate(offset int) (group, member int, err error) {
	if offset < 0 || offset >= c.totalVecs {
		return 0, 0, fmt.Errorf("%w: vector %d of %d", ErrIndexOutOfRange, offset, c.totalVecs)
	}
	digits := c.digits(offset)
	for _, j := range c.groupLoops {
		group = group*c.loops[j].extent + digits[j]
	}
	for _, j := range c.phaseLoops {
		member = member*c.loops[j].extent + digits[j]
	}
	return group, member, nil
}

// Coordinates holds the loop indices of a group by dataset dimension.
type Coordinates struct {
	// Increment maps a 0-based indirect dimension to its increment index.
	Increment map[int]int

	// Array maps an arrayed dimension to its array step.
	Array map[int]int
}

// Coordinates returns the increment and array indices of group i.
func (c *Counter) Coordinates(i int) (Coordinates, error) {
	g, err := c.Group(i)
	if err != nil {
		return Coordinates{}, err
	}
	coords := Coordinates{Increment: map[int]int{}, Array: map[int]int{}}
	digits := c.digits(g.Offsets[0])
	for j, l := range c.loops {
		switch l.tok.Kind {
		case acqorder.Dimension:
			coords.Increment[l.tok.Dim()] = digits[j]
		case acqorder.Array:
			coords.Array[l.tok.Dim()] = digits[j]
		}
	}
	return coords, nil
}

func (c *Counter) digits(offset int) []int {
	d := make([]int, len(c.loops))
	for j, l := range c.loops {
		d[j] = (offset / l.stride) % l.extent
	}
	return d
}

// WithArraySize returns a counter for the same acquisition with the array
// size of dim replaced. The receiver is left untouched on error.
func (c *Counter) WithArraySize(dim, n int) (*Counter, error) {
	if dim < 1 || dim >= c.desc.NDim() {
		return nil, fmt.Errorf("%w: array dimension %d", ErrConfig, dim+1)
	}
	desc := c.desc.Clone()
	if desc.ArraySizes == nil {
		desc.ArraySizes = make([]int, desc.NDim())
	}
	desc.ArraySizes[dim] = n
	return New(desc, c.modes)
}

// WithOrder returns a counter using a new acquisition order.
func (c *Counter) WithOrder(order acqorder.Order) (*Counter, error) {
	desc := c.desc.Clone()
	desc.AcqOrder = order.Strings()
	return New(desc, c.modes)
}

// WithModes returns a counter using new combination modes.
func (c *Counter) WithModes(modes []combine.Mode) (*Counter, error) {
	return New(c.desc, modes)
}
