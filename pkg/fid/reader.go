// Package fid reads raw multi-dimensional FIDs vector by vector and
// assembles the vectors into hypercomplex groups.
package fid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"nmrfid/internal/models"
	"nmrfid/pkg/vecgroup"
)

var (
	// ErrUnsupported is returned for reads the raw layout cannot serve.
	ErrUnsupported = errors.New("unsupported read")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("reader is closed")
)

// Reader is the acquisition source the group loader reads from.
type Reader interface {
	NDim() int
	Size(dim int) int
	IsComplex(dim int) bool
	ArraySize(dim int) int
	AcqOrder() []string

	// ReadVector reads vector index along dim into out.
	ReadVector(dim, index int, out *models.Vector) error

	// SetAcqOrder and SetArraySize re-derive the layout. On error the
	// previous layout stays in effect.
	SetAcqOrder(tokens []string) error
	SetArraySize(dim, n int) error

	// Descriptor returns a copy of the current layout.
	Descriptor() *models.AcquisitionDescriptor
}

// SampleFormat is the on-disk sample encoding.
type SampleFormat int

const (
	Float64 SampleFormat = iota
	Float32
)

func (f SampleFormat) bytes() int {
	if f == Float32 {
		return 4
	}
	return 8
}

// RawOptions configures a RawReader.
type RawOptions struct {
	Format    SampleFormat
	ByteOrder binary.ByteOrder

	// HeaderBytes are skipped at the start of the file.
	HeaderBytes int64
}

// RawReader reads a flat file of direct-dimension vectors, one after the
// other in physical offset order, complex vectors stored as re/im pairs.
type RawReader struct {
	mu      sync.RWMutex
	src     io.ReaderAt
	closer  io.Closer
	opts    RawOptions
	desc    *models.AcquisitionDescriptor
	counter *vecgroup.Counter
	size    int64
}

// OpenRaw opens path with the layout desc.
func OpenRaw(path string, desc *models.AcquisitionDescriptor, opts RawOptions) (*RawReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FID: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat FID: %w", err)
	}
	r, err := NewRawReader(f, st.Size(), desc, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewRawReader reads from src, which holds size bytes.
func NewRawReader(src io.ReaderAt, size int64, desc *models.AcquisitionDescriptor, opts RawOptions) (*RawReader, error) {
	if opts.ByteOrder == nil {
		opts.ByteOrder = binary.LittleEndian
	}
	r := &RawReader{src: src, opts: opts, size: size}
	if err := r.apply(desc.Clone()); err != nil {
		return nil, err
	}
	return r, nil
}

// apply validates desc against the file and installs it. Callers hold mu
// or own r exclusively.
func (r *RawReader) apply(desc *models.AcquisitionDescriptor) error {
	counter, err := vecgroup.New(desc, nil)
	if err != nil {
		return err
	}
	need := r.opts.HeaderBytes + int64(counter.TotalVectors())*int64(r.vectorBytes(desc))
	if need > r.size {
		return fmt.Errorf("%w: FID holds %d bytes, layout needs %d", vecgroup.ErrConfig, r.size, need)
	}
	r.desc = desc
	r.counter = counter
	return nil
}

func (r *RawReader) vectorBytes(desc *models.AcquisitionDescriptor) int {
	n := desc.Sizes[0]
	if desc.IsComplex(0) {
		n *= 2
	}
	return n * r.opts.Format.bytes()
}

func (r *RawReader) NDim() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.desc.NDim()
}

func (r *RawReader) Size(dim int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if dim < 0 || dim >= r.desc.NDim() {
		return 0
	}
	return r.desc.Sizes[dim]
}

func (r *RawReader) IsComplex(dim int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.desc.IsComplex(dim)
}

func (r *RawReader) ArraySize(dim int) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.desc.ArraySize(dim)
}

func (r *RawReader) AcqOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.desc.AcqOrder) == 0 {
		return r.counter.Order().Strings()
	}
	return append([]string(nil), r.desc.AcqOrder...)
}

func (r *RawReader) Descriptor() *models.AcquisitionDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.desc.Clone()
}

func (r *RawReader) SetAcqOrder(tokens []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	desc := r.desc.Clone()
	desc.AcqOrder = append([]string(nil), tokens...)
	return r.apply(desc)
}

func (r *RawReader) SetArraySize(dim, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if dim < 0 || dim >= r.desc.NDim() {
		return fmt.Errorf("%w: array dimension %d", vecgroup.ErrConfig, dim+1)
	}
	desc := r.desc.Clone()
	if desc.ArraySizes == nil {
		desc.ArraySizes = make([]int, desc.NDim())
	}
	desc.ArraySizes[dim] = n
	return r.apply(desc)
}

// ReadVector reads the direct-dimension vector at physical offset index.
// Only dim 0 is stored contiguously.
func (r *RawReader) ReadVector(dim, index int, out *models.Vector) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.src == nil {
		return ErrClosed
	}
	if dim != 0 {
		return fmt.Errorf("%w: vectors along dimension %d", ErrUnsupported, dim+1)
	}
	if index < 0 || index >= r.counter.TotalVectors() {
		return fmt.Errorf("%w: vector %d of %d", vecgroup.ErrIndexOutOfRange, index, r.counter.TotalVectors())
	}

	nb := r.vectorBytes(r.desc)
	buf := make([]byte, nb)
	off := r.opts.HeaderBytes + int64(index)*int64(nb)
	if _, err := r.src.ReadAt(buf, off); err != nil {
		return fmt.Errorf("failed to read vector %d: %w", index, err)
	}

	width := r.opts.Format.bytes()
	n := nb / width
	if cap(out.Data) >= n {
		out.Data = out.Data[:n]
	} else {
		out.Data = make([]float64, n)
	}
	bo := r.opts.ByteOrder
	for i := 0; i < n; i++ {
		b := buf[i*width : (i+1)*width]
		if r.opts.Format == Float32 {
			out.Data[i] = float64(math.Float32frombits(bo.Uint32(b)))
		} else {
			out.Data[i] = math.Float64frombits(bo.Uint64(b))
		}
	}
	out.Complex = r.desc.IsComplex(0)
	out.Offset = index
	return nil
}

// Close releases the file opened by OpenRaw.
func (r *RawReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.src = nil
	if r.closer != nil {
		err := r.closer.Close()
		r.closer = nil
		return err
	}
	return nil
}

// WriteRaw writes vectors in the layout RawReader reads.
func WriteRaw(w io.Writer, vecs [][]float64, opts RawOptions) error {
	bo := opts.ByteOrder
	if bo == nil {
		bo = binary.LittleEndian
	}
	width := opts.Format.bytes()
	for i, v := range vecs {
		buf := make([]byte, len(v)*width)
		for j, x := range v {
			b := buf[j*width : (j+1)*width]
			if opts.Format == Float32 {
				bo.PutUint32(b, math.Float32bits(float32(x)))
			} else {
				bo.PutUint64(b, math.Float64bits(x))
			}
		}
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("failed to write vector %d: %w", i, err)
		}
	}
	return nil
}
