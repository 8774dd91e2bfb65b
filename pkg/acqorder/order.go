// Package acqorder parses acquisition-order descriptions of raw
// multi-dimensional FIDs into structured token lists.
//
// An acquisition order lists the loops that wrote the file, slowest-varying
// first. Each token names a phase cycle (p), an indirect dimension (d) or an
// array step (a):
//
//	d2,p1        2D, each increment stores its phase-cycle pair back to back
//	d3,d2,p2,p1  3D, both phase cycles innermost
//	321          bare digit form, expanded to p1,p2,d2,d3
package acqorder

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrConfig is wrapped by every error this package returns.
var ErrConfig = errors.New("invalid acquisition order")

// Kind is the loop type of a token.
type Kind byte

const (
	Phase     Kind = 'p'
	Dimension Kind = 'd'
	Array     Kind = 'a'
)

// Token is one acquisition loop.
type Token struct {
	Kind Kind

	// Index is 1-based. For Dimension and Array it is the dataset dimension
	// (2..nDim); for Phase it is the indirect dimension ordinal (1..nDim-1).
	Index int
}

// Dim returns the 0-based dataset dimension the token advances.
func (t Token) Dim() int {
	if t.Kind == Phase {
		return t.Index
	}
	return t.Index - 1
}

func (t Token) String() string {
	return string(t.Kind) + strconv.Itoa(t.Index)
}

// Order is a validated acquisition order for a fixed dimensionality.
type Order struct {
	nDim   int
	tokens []Token
}

// NDim returns the dimensionality the order was validated for.
func (o Order) NDim() int { return o.nDim }

// Tokens returns a copy of the token list, slowest-varying first.
func (o Order) Tokens() []Token {
	return append([]Token(nil), o.tokens...)
}

// Strings returns the token list as strings.
func (o Order) Strings() []string {
	s := make([]string, len(o.tokens))
	for i, t := range o.tokens {
		s[i] = t.String()
	}
	return s
}

// String renders the order in its comma separated form.
func (o Order) String() string {
	return strings.Join(o.Strings(), ",")
}

// Quoted renders the order as a list of single-quoted tokens for embedding
// in a processing script.
func (o Order) Quoted() string {
	parts := o.Strings()
	for i, p := range parts {
		parts[i] = "'" + p + "'"
	}
	return strings.Join(parts, ",")
}

// HasPhase reports whether the order carries a phase token for the 0-based
// dataset dimension dim.
func (o Order) HasPhase(dim int) bool {
	return o.has(Phase, dim)
}

// HasArray reports whether the order carries an array token for dim.
func (o Order) HasArray(dim int) bool {
	return o.has(Array, dim)
}

func (o Order) has(kind Kind, dim int) bool {
	for _, t := range o.tokens {
		if t.Kind == kind && t.Dim() == dim {
			return true
		}
	}
	return false
}

// Parse parses user supplied acquisition-order text for an nDim dataset.
func Parse(text string, nDim int) (Order, error) {
	fields := splitFields(text)
	if len(fields) == 0 {
		return Order{}, fmt.Errorf("%w: empty", ErrConfig)
	}
	return FromStrings(fields, nDim)
}

// FromStrings validates an already split token list.
func FromStrings(fields []string, nDim int) (Order, error) {
	if nDim < 1 {
		return Order{}, fmt.Errorf("%w: dimensionality %d", ErrConfig, nDim)
	}
	if len(fields) == 1 && isDigits(fields[0]) {
		expanded, err := expandDigits(fields[0], nDim)
		if err != nil {
			return Order{}, err
		}
		fields = expanded
	}

	tokens := make([]Token, 0, len(fields))
	seen := make(map[Token]bool, len(fields))
	nD := 0
	for _, f := range fields {
		tok, err := parseToken(f, nDim)
		if err != nil {
			return Order{}, err
		}
		if seen[tok] {
			return Order{}, fmt.Errorf("%w: duplicate token %q", ErrConfig, tok)
		}
		seen[tok] = true
		if tok.Kind == Dimension {
			nD++
		}
		tokens = append(tokens, tok)
	}
	if nD != nDim-1 {
		return Order{}, fmt.Errorf("%w: %d dimension tokens for %d indirect dimensions", ErrConfig, nD, nDim-1)
	}
	return Order{nDim: nDim, tokens: tokens}, nil
}

// Default returns the conventional order for nDim: all indirect dimensions
// from slowest (highest) to fastest, then the phase cycles with the first
// indirect dimension's cycle innermost.
func Default(nDim int) Order {
	tokens := make([]Token, 0, 2*(nDim-1))
	for d := nDim; d >= 2; d-- {
		tokens = append(tokens, Token{Kind: Dimension, Index: d})
	}
	for p := nDim - 1; p >= 1; p-- {
		tokens = append(tokens, Token{Kind: Phase, Index: p})
	}
	return Order{nDim: nDim, tokens: tokens}
}

func parseToken(f string, nDim int) (Token, error) {
	if len(f) < 2 {
		return Token{}, fmt.Errorf("%w: token %q", ErrConfig, f)
	}
	kind := Kind(f[0] | 0x20)
	switch kind {
	case Phase, Dimension, Array:
	default:
		return Token{}, fmt.Errorf("%w: token %q has unknown type %q", ErrConfig, f, f[0])
	}
	if !isDigits(f[1:]) {
		return Token{}, fmt.Errorf("%w: token %q has non-numeric index", ErrConfig, f)
	}
	idx, err := strconv.Atoi(f[1:])
	if err != nil {
		return Token{}, fmt.Errorf("%w: token %q: %v", ErrConfig, f, err)
	}
	lo, hi := 2, nDim
	if kind == Phase {
		lo, hi = 1, nDim-1
	}
	if idx < lo || idx > hi {
		return Token{}, fmt.Errorf("%w: token %q out of range for %d dimensions", ErrConfig, f, nDim)
	}
	return Token{Kind: kind, Index: idx}, nil
}

// expandDigits turns the bare "321" form into letter tokens. Digits name
// dataset dimensions and are read right to left; the direct dimension is
// skipped.
func expandDigits(s string, nDim int) ([]string, error) {
	if len(s) != nDim && len(s) != nDim-1 {
		return nil, fmt.Errorf("%w: %q has %d digits for %d dimensions", ErrConfig, s, len(s), nDim)
	}
	var phases, dims []string
	for i := len(s) - 1; i >= 0; i-- {
		d := int(s[i] - '0')
		if d == 1 {
			continue
		}
		if d < 2 || d > nDim {
			return nil, fmt.Errorf("%w: %q names dimension %d", ErrConfig, s, d)
		}
		phases = append(phases, "p"+strconv.Itoa(d-1))
		dims = append(dims, "d"+strconv.Itoa(d))
	}
	return append(phases, dims...), nil
}

func splitFields(text string) []string {
	var out []string
	for _, f := range strings.Split(text, ",") {
		f = strings.TrimSpace(f)
		f = strings.Trim(f, `'"`)
		f = strings.TrimSpace(f)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
