package script

import (
	"fmt"
	"strconv"
	"strings"
)

// Key names a bucket of operations in a Store. D keys hold operations run
// once per dataset dimension ("D1", "D2,3", "D_ALL"); P keys hold operations
// that work on planes spanning several dimensions ("P1", "P1,2"). The empty
// key is the null key and sorts last.
type Key string

// KeyAll is the key for operations applied along every dimension.
const KeyAll Key = "D_ALL"

const allSuffix = "_ALL"

// DimKey returns the D key of the 0-based dataset dimension dim.
func DimKey(dim int) Key {
	return Key("D" + strconv.Itoa(dim+1))
}

// PlaneKey returns the P key for the given 0-based dimensions.
func PlaneKey(dims ...int) Key {
	return Key("P" + joinDims(dims))
}

// MultiDimKey returns the D key for a combined multi-dimension entry.
func MultiDimKey(dims ...int) Key {
	return Key("D" + joinDims(dims))
}

func joinDims(dims []int) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = strconv.Itoa(d + 1)
	}
	return strings.Join(parts, ",")
}

// ParseKey validates s as a key.
func ParseKey(s string) (Key, error) {
	k := Key(strings.TrimSpace(s))
	if _, err := k.dims(); err != nil {
		return "", err
	}
	return k, nil
}

// Kind returns the key prefix, 'D' or 'P', or 0 for the null key.
func (k Key) Kind() byte {
	if k == "" {
		return 0
	}
	return k[0]
}

// Spec returns the key without its prefix: "2,3" for "D2,3", "_ALL" for
// "D_ALL".
func (k Key) Spec() string {
	if k == "" {
		return ""
	}
	return string(k[1:])
}

// All reports whether k applies to every dimension.
func (k Key) All() bool {
	return k.Spec() == allSuffix
}

// Dims returns the 0-based dimensions named by k. It returns nil for keys
// that apply to every dimension and for malformed keys.
func (k Key) Dims() []int {
	d, _ := k.dims()
	return d
}

func (k Key) dims() ([]int, error) {
	if k == "" {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if k.Kind() != 'D' && k.Kind() != 'P' {
		return nil, fmt.Errorf("%w: %q has prefix %q", ErrInvalidKey, string(k), k[0])
	}
	if k.All() {
		return nil, nil
	}
	spec := k.Spec()
	if spec == "" {
		return nil, fmt.Errorf("%w: %q names no dimension", ErrInvalidKey, string(k))
	}
	parts := strings.Split(spec, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, string(k))
		}
		out[i] = n - 1
	}
	return out, nil
}

// ValidFor reports whether k can be used with an nDim dataset.
func (k Key) ValidFor(nDim int) bool {
	dims, err := k.dims()
	if err != nil {
		return false
	}
	for _, d := range dims {
		if d >= nDim {
			return false
		}
	}
	return true
}

// Compare orders keys for iteration and script generation. Keys without a
// comma, and keys that both have one, compare as plain strings. When only
// one key has a comma, its part before the first comma is compared with the
// other key, and a combined entry sorts ahead of the single-dimension key it
// starts with. The null key sorts after everything else.
func Compare(a, b Key) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	}

	ia := strings.IndexByte(string(a), ',')
	ib := strings.IndexByte(string(b), ',')
	if (ia < 0) == (ib < 0) {
		return strings.Compare(string(a), string(b))
	}
	if ia >= 0 {
		prefix := a[:ia]
		if prefix == b {
			return -1
		}
		return strings.Compare(string(prefix), string(b))
	}
	prefix := b[:ib]
	if prefix == a {
		return 1
	}
	return strings.Compare(string(a), string(prefix))
}
