// Package combine forms complex vectors from the paired real acquisitions of
// a hypercomplex or echo-antiecho indirect dimension.
package combine

import (
	"errors"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrInputCount is returned when the number of input vectors does not
	// match what the mode needs.
	ErrInputCount = errors.New("wrong number of input vectors")

	// ErrInputShape is returned for unequal or odd-length inputs.
	ErrInputShape = errors.New("input vectors have incompatible lengths")

	// ErrUnknownMode is returned by ParseMode.
	ErrUnknownMode = errors.New("unknown combination mode")
)

// Mode selects how the two physical vectors of an indirect dimension are
// combined.
type Mode int

const (
	Hypercomplex Mode = iota
	HypercomplexReversed
	EchoAntiEcho
	EchoAntiEchoReversed
	None
)

// Default is the mode used for indirect dimensions that have none set.
const Default = Hypercomplex

// Inputs is the number of physical vectors every mode consumes.
const Inputs = 2

var modeNames = map[Mode]string{
	Hypercomplex:         "hyper",
	HypercomplexReversed: "hyper-r",
	EchoAntiEcho:         "echo-antiecho",
	EchoAntiEchoReversed: "echo-antiecho-r",
	None:                 "none",
}

var modeAliases = map[string]Mode{
	"hyper":                  Hypercomplex,
	"hypercomplex":           Hypercomplex,
	"hyper-r":                HypercomplexReversed,
	"hypercomplex-reversed":  HypercomplexReversed,
	"echo-antiecho":          EchoAntiEcho,
	"ea":                     EchoAntiEcho,
	"echo-antiecho-r":        EchoAntiEchoReversed,
	"echo-antiecho-reversed": EchoAntiEchoReversed,
	"ea-r":                   EchoAntiEchoReversed,
	"none":                   None,
	"":                       None,
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode accepts the short names produced by String and their long forms.
func ParseMode(s string) (Mode, error) {
	if m, ok := modeAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return m, nil
	}
	return None, fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// coefficients are applied to (re0, im0, re1, im1) of each point. The first
// four produce the real part of the output, the last four the imaginary.
var coefficients = map[Mode][8]float64{
	EchoAntiEcho:         {1, 0, -1, 0, 0, 1, 0, 1},
	EchoAntiEchoReversed: {1, 0, 1, 0, 0, 1, 0, -1},
	Hypercomplex:         {1, 0, 0, 0, 0, 0, -1, 0},
	HypercomplexReversed: {1, 0, 0, 0, 0, 0, 1, 0},
}

// Coefficients returns the combination coefficients of m. The second result
// is false for None, which has no coefficient matrix.
func Coefficients(m Mode) ([8]float64, bool) {
	c, ok := coefficients[m]
	return c, ok
}

// Combine produces one complex vector from the two physical vectors of a
// group. For coefficient modes each input holds interleaved re/im samples.
// For None each input holds real samples and the first supplies the real
// part, the second the imaginary part. Inputs are not modified.
func Combine(m Mode, vecs [][]float64) ([]complex128, error) {
	if len(vecs) != Inputs {
		return nil, fmt.Errorf("%w: mode %s needs %d, got %d", ErrInputCount, m, Inputs, len(vecs))
	}
	a, b := vecs[0], vecs[1]
	if len(a) != len(b) {
		return nil, fmt.Errorf("%w: %d and %d", ErrInputShape, len(a), len(b))
	}

	if m == None {
		out := make([]complex128, len(a))
		for i := range a {
			out[i] = complex(a[i], b[i])
		}
		return out, nil
	}

	c, ok := coefficients[m]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, int(m))
	}
	if len(a)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length %d for interleaved input", ErrInputShape, len(a))
	}
	n := len(a) / 2
	if n == 0 {
		return []complex128{}, nil
	}

	// Rows of x are re0, im0, re1, im1; one column per point.
	x := mat.NewDense(4, n, nil)
	for k := 0; k < n; k++ {
		x.Set(0, k, a[2*k])
		x.Set(1, k, a[2*k+1])
		x.Set(2, k, b[2*k])
		x.Set(3, k, b[2*k+1])
	}
	coef := mat.NewDense(2, 4, c[:])

	var y mat.Dense
	y.Mul(coef, x)

	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		out[k] = complex(y.At(0, k), y.At(1, k))
	}
	return out, nil
}

// Interleave flattens complex samples to re/im pairs.
func Interleave(c []complex128) []float64 {
	out := make([]float64, 2*len(c))
	for i, v := range c {
		out[2*i] = real(v)
		out[2*i+1] = imag(v)
	}
	return out
}

// Split returns the real and imaginary parts as separate slices.
func Split(c []complex128) (re, im []float64) {
	re = make([]float64, len(c))
	im = make([]float64, len(c))
	for i, v := range c {
		re[i] = real(v)
		im[i] = imag(v)
	}
	return re, im
}

// FromInterleaved is the inverse of Interleave. A trailing odd sample is
// ignored.
func FromInterleaved(d []float64) []complex128 {
	out := make([]complex128, len(d)/2)
	for i := range out {
		out[i] = complex(d[2*i], d[2*i+1])
	}
	return out
}
