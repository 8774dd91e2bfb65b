package vecgroup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nmrfid/internal/models"
	"nmrfid/pkg/acqorder"
	"nmrfid/pkg/combine"
)

func descriptor(sizes []int, cplx []bool, arrays []int, order ...string) *models.AcquisitionDescriptor {
	return &models.AcquisitionDescriptor{
		Sizes:      sizes,
		Complex:    cplx,
		ArraySizes: arrays,
		AcqOrder:   order,
	}
}

// checkCoverage verifies that the groups partition the vector space and that
// Locate inverts Group.
func checkCoverage(t *testing.T, c *Counter) {
	t.Helper()
	seen := make([]int, c.TotalVectors())
	for i := 0; i < c.TotalGroups(); i++ {
		g, err := c.Group(i)
		require.NoError(t, err)
		require.Equal(t, i, g.Index)
		require.Len(t, g.Offsets, c.GroupSize())
		for m, off := range g.Offsets {
			require.GreaterOrEqual(t, off, 0)
			require.Less(t, off, c.TotalVectors())
			seen[off]++

			gi, member, err := c.Locate(off)
			require.NoError(t, err)
			assert.Equal(t, i, gi)
			assert.Equal(t, m, member)
		}
		for m := 1; m < len(g.Offsets); m++ {
			assert.Less(t, g.Offsets[m-1], g.Offsets[m], "members must be in phase-cycle order")
		}
	}
	for off, n := range seen {
		assert.Equal(t, 1, n, "vector %d covered %d times", off, n)
	}
}

func TestEndToEnd2D(t *testing.T) {
	c, err := New(descriptor([]int{512, 128}, []bool{true, true}, nil, "d2", "p1"), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, c.GroupSize())
	assert.Equal(t, 64, c.TotalGroups())
	assert.Equal(t, 128, c.TotalVectors())

	g0, err := c.Group(0)
	require.NoError(t, err)
	g1, err := c.Group(1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, g0.Offsets)
	assert.Equal(t, []int{2, 3}, g1.Offsets)

	checkCoverage(t, c)
}

func TestPhaseOutermost(t *testing.T) {
	c, err := New(descriptor([]int{512, 128}, []bool{true, true}, nil, "p1", "d2"), nil)
	require.NoError(t, err)

	g, err := c.Group(3)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 67}, g.Offsets)
	checkCoverage(t, c)
}

func TestGroupSizeInvariant(t *testing.T) {
	tests := []struct {
		name string
		desc *models.AcquisitionDescriptor
		want int
	}{
		{"1D", descriptor([]int{1024}, []bool{true}, nil), 1},
		{"all real", descriptor([]int{512, 64, 32}, []bool{true, false, false}, nil), 1},
		{"one complex", descriptor([]int{512, 64, 32}, []bool{true, true, false}, nil), 2},
		{"two complex", descriptor([]int{512, 64, 32}, []bool{true, true, true}, nil), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.desc, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.GroupSize())
			checkCoverage(t, c)
		})
	}
}

func TestCoverageOrders(t *testing.T) {
	orders := [][]string{
		{"d3", "d2", "p2", "p1"},
		{"d2", "d3", "p1", "p2"},
		{"p1", "d3", "p2", "d2"},
		{"p2", "p1", "d2", "d3"},
		{"321"},
	}
	for _, order := range orders {
		c, err := New(descriptor([]int{64, 8, 12}, []bool{true, true, true}, nil, order...), nil)
		require.NoError(t, err, "%v", order)
		assert.Equal(t, 4, c.GroupSize())
		assert.Equal(t, 24, c.TotalGroups())
		checkCoverage(t, c)
	}
}

func TestArrayedDimension(t *testing.T) {
	desc := descriptor([]int{256, 40}, []bool{true, true}, []int{0, 5}, "a2", "d2", "p1")
	c, err := New(desc, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, c.Increments(1))
	assert.Equal(t, 20, c.TotalGroups())
	checkCoverage(t, c)

	// Array loop outermost: group 4 is array step 1, increment 0.
	coords, err := c.Coordinates(4)
	require.NoError(t, err)
	assert.Equal(t, 1, coords.Array[1])
	assert.Equal(t, 0, coords.Increment[1])

	g, err := c.Group(4)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, g.Offsets)
}

func TestImplicitTokens(t *testing.T) {
	// No phase or array tokens: the array loop goes outermost and the phase
	// loop innermost.
	c, err := New(descriptor([]int{256, 40}, []bool{true, true}, []int{0, 5}, "d2"), nil)
	require.NoError(t, err)
	g, err := c.Group(4)
	require.NoError(t, err)
	assert.Equal(t, []int{8, 9}, g.Offsets)
	checkCoverage(t, c)
}

func TestDefaultOrder(t *testing.T) {
	c, err := New(descriptor([]int{512, 16}, []bool{true, true}, nil), nil)
	require.NoError(t, err)
	assert.Equal(t, "d2,p1", c.Order().String())
	assert.Equal(t, 8, c.TotalGroups())
}

func TestConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		desc *models.AcquisitionDescriptor
	}{
		{"missing dimension token", descriptor([]int{512, 128, 64}, []bool{true, true, true}, nil, "d2", "p1", "p2")},
		{"extra dimension token", descriptor([]int{512, 128}, []bool{true, true}, nil, "d2", "d3", "p1")},
		{"odd complex size", descriptor([]int{512, 127}, []bool{true, true}, nil, "d2", "p1")},
		{"array does not divide", descriptor([]int{512, 40}, []bool{true, true}, []int{0, 3}, "d2", "p1")},
		{"bad flags", descriptor([]int{512, 40}, []bool{true}, nil, "d2", "p1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.desc, nil)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "got %v", err)
		})
	}

	_, err := New(descriptor([]int{512, 128}, []bool{true, true}, nil), []combine.Mode{combine.Hypercomplex, combine.EchoAntiEcho})
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestOutOfRange(t *testing.T) {
	c, err := New(descriptor([]int{512, 8}, []bool{true, true}, nil), nil)
	require.NoError(t, err)

	_, err = c.Group(4)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	_, err = c.Group(-1)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
	_, _, err = c.Locate(8)
	assert.True(t, errors.Is(err, ErrIndexOutOfRange))
}

func TestDeterministic(t *testing.T) {
	c, err := New(descriptor([]int{64, 8, 12}, []bool{true, true, true}, nil, "p1", "d3", "p2", "d2"), nil)
	require.NoError(t, err)
	a, err := c.Group(7)
	require.NoError(t, err)
	b, err := c.Group(7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWithArraySizeRederives(t *testing.T) {
	c, err := New(descriptor([]int{256, 40}, []bool{true, true}, nil, "d2", "p1"), nil)
	require.NoError(t, err)
	assert.Equal(t, 20, c.TotalGroups())

	c2, err := c.WithArraySize(1, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, c2.TotalGroups())
	assert.Equal(t, 4, c2.Increments(1))
	assert.Equal(t, 20, c.Increments(1), "receiver must be unchanged")

	_, err = c.WithArraySize(1, 3)
	assert.True(t, errors.Is(err, ErrConfig))

	o, err := acqorder.Parse("p1,d2", 2)
	require.NoError(t, err)
	c3, err := c.WithOrder(o)
	require.NoError(t, err)
	g, err := c3.Group(0)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 20}, g.Offsets)
}

func TestModes(t *testing.T) {
	c, err := New(descriptor([]int{64, 8, 12}, []bool{true, true, true}, nil), []combine.Mode{combine.EchoAntiEcho})
	require.NoError(t, err)
	assert.Equal(t, combine.EchoAntiEcho, c.Mode(1))
	assert.Equal(t, combine.Hypercomplex, c.Mode(2))
}
