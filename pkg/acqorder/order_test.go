package acqorder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLetterTokens(t *testing.T) {
	o, err := Parse("d2,p1", 2)
	require.NoError(t, err)
	assert.Equal(t, []Token{{Dimension, 2}, {Phase, 1}}, o.Tokens())
	assert.Equal(t, "d2,p1", o.String())
	assert.Equal(t, "'d2','p1'", o.Quoted())
	assert.True(t, o.HasPhase(1))
	assert.False(t, o.HasArray(1))
}

func TestParseQuotedAndSpaced(t *testing.T) {
	o, err := Parse(" 'a2', 'D3' , \"d2\",p2,p1 ", 3)
	require.NoError(t, err)
	assert.Equal(t, "a2,d3,d2,p2,p1", o.String())
	assert.True(t, o.HasArray(1))
}

func TestParseBareDigits(t *testing.T) {
	tests := []struct {
		text string
		nDim int
		want string
	}{
		{"21", 2, "p1,d2"},
		{"2", 2, "p1,d2"},
		{"321", 3, "p1,p2,d2,d3"},
		{"312", 3, "p1,p2,d2,d3"},
		{"231", 3, "p2,p1,d3,d2"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			o, err := Parse(tt.text, tt.nDim)
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		nDim int
	}{
		{"empty", "", 2},
		{"unknown letter", "x2,p1", 2},
		{"non digit suffix", "d2,pa", 2},
		{"missing dimension", "p1", 2},
		{"too many dimensions", "d2,d3,p1", 2},
		{"duplicate", "d2,p1,p1", 2},
		{"direct dimension", "d1,p1", 2},
		{"phase out of range", "d2,p2", 2},
		{"digits wrong length", "4321", 3},
		{"digits bad dimension", "51", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, tt.nDim)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfig), "error %v should wrap ErrConfig", err)
		})
	}
}

func TestDefault(t *testing.T) {
	assert.Equal(t, "d2,p1", Default(2).String())
	assert.Equal(t, "d3,d2,p2,p1", Default(3).String())
	assert.Empty(t, Default(1).Tokens())
}

func TestTokenDim(t *testing.T) {
	assert.Equal(t, 1, Token{Phase, 1}.Dim())
	assert.Equal(t, 1, Token{Dimension, 2}.Dim())
	assert.Equal(t, 2, Token{Array, 3}.Dim())
}
