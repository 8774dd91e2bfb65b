// Package script holds the per-dimension processing operations of a dataset
// and turns them into processing script text.
package script

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrInvalidOperation is returned for empty or malformed operation text.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidKey is returned for keys that are not D or P keys.
	ErrInvalidKey = errors.New("invalid dimension key")
)

// Snapshot is a deep copy of a Store's contents.
type Snapshot struct {
	Ops    map[Key][]string
	Header []string
}

// Store maps dimension keys to ordered operation lists. Keys iterate in
// Compare order. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	ops       map[Key][]string
	keys      []Key
	selection map[Key]int
	header    []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		ops:       make(map[Key][]string),
		selection: make(map[Key]int),
	}
}

// SetOperation normalizes text and stores it under key.
//
// With index >= 0 the operation is inserted at that position (clamped to
// the list). Otherwise an existing operation with the same name is looked
// up: without appendNew it is replaced in place, with appendNew the new one
// is inserted after the current selection (or after the match when nothing
// is selected). Operations with a new name are added at the end.
//
// The resulting position is returned and becomes the key's selection.
func (s *Store) SetOperation(key Key, text string, appendNew bool, index int) (int, error) {
	if _, err := key.dims(); err != nil {
		return -1, err
	}
	op, err := ParseOperation(text)
	if err != nil {
		return -1, err
	}
	entry := op.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.ops[key]
	var pos int
	switch {
	case index >= 0:
		pos = min(index, len(list))
		list = slices.Insert(list, pos, entry)
	default:
		found := -1
		for i, e := range list {
			if OpName(e) == op.Name {
				found = i
				break
			}
		}
		switch {
		case found < 0:
			pos = len(list)
			list = slices.Insert(list, pos, entry)
		case !appendNew:
			pos = found
			list[pos] = entry
		default:
			sel, ok := s.selection[key]
			if !ok || sel < 0 || sel >= len(list) {
				sel = found
			}
			pos = sel + 1
			list = slices.Insert(list, pos, entry)
		}
	}
	s.put(key, list)
	s.selection[key] = pos
	return pos, nil
}

// put stores list under key and keeps the key order. Callers hold mu.
func (s *Store) put(key Key, list []string) {
	if _, ok := s.ops[key]; !ok {
		i, _ := slices.BinarySearchFunc(s.keys, key, Compare)
		s.keys = slices.Insert(s.keys, i, key)
	}
	s.ops[key] = list
}

// SetOperations replaces the whole list of key. Every entry is normalized;
// the list is left unchanged if any entry is invalid.
func (s *Store) SetOperations(key Key, texts []string) error {
	if _, err := key.dims(); err != nil {
		return err
	}
	list := make([]string, 0, len(texts))
	for i, t := range texts {
		op, err := ParseOperation(t)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i+1, err)
		}
		list = append(list, op.String())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(key, list)
	delete(s.selection, key)
	return nil
}

// Operations returns a copy of the list of key, empty if key is absent.
func (s *Store) Operations(key Key) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.ops[key]...)
}

// Find returns the position of the first operation named name under key,
// or -1.
func (s *Store) Find(key Key, name string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range s.ops[key] {
		if OpName(e) == name {
			return i
		}
	}
	return -1
}

// Select sets the selection of key. Out of range values clear it.
func (s *Store) Select(key Key, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.ops[key]) {
		delete(s.selection, key)
		return
	}
	s.selection[key] = index
}

// Selection returns the selection of key, or -1.
func (s *Store) Selection(key Key) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sel, ok := s.selection[key]; ok {
		return sel
	}
	return -1
}

// RemoveAt deletes one operation. Out of range indices are ignored. The
// selection is clamped to the shortened list.
func (s *Store) RemoveAt(key Key, index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.ops[key]
	if index < 0 || index >= len(list) {
		return
	}
	list = slices.Delete(list, index, index+1)
	s.ops[key] = list
	if sel, ok := s.selection[key]; ok {
		switch {
		case len(list) == 0:
			delete(s.selection, key)
		case sel >= len(list):
			s.selection[key] = len(list) - 1
		}
	}
}

// Keys returns the keys in Compare order, including keys with empty lists.
func (s *Store) Keys() []Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.keys)
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Clear empties every key and the header.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = make(map[Key][]string)
	s.keys = nil
	s.selection = make(map[Key]int)
	s.header = nil
}

// Retain drops keys that are not valid for an nDim dataset. Used when a
// new acquisition is loaded.
func (s *Store) Retain(nDim int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.keys[:0]
	for _, k := range s.keys {
		if k.ValidFor(nDim) {
			kept = append(kept, k)
			continue
		}
		delete(s.ops, k)
		delete(s.selection, k)
	}
	s.keys = kept
}

// Header returns a copy of the header-only operations.
func (s *Store) Header() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.header)
}

// SetHeaderOperation adds a header operation, replacing one with the same
// name.
func (s *Store) SetHeaderOperation(text string) error {
	op, err := ParseOperation(text)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.header {
		if OpName(e) == op.Name {
			s.header[i] = op.String()
			return nil
		}
	}
	s.header = append(s.header, op.String())
	return nil
}

// Snapshot returns a deep copy of the store.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Ops:    make(map[Key][]string, len(s.ops)),
		Header: slices.Clone(s.header),
	}
	for k, v := range s.ops {
		snap.Ops[k] = append([]string{}, v...)
	}
	return snap
}

// Restore replaces the store's contents with a copy of snap. Selections
// are cleared.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ops = make(map[Key][]string, len(snap.Ops))
	s.keys = make([]Key, 0, len(snap.Ops))
	for k, v := range snap.Ops {
		s.ops[k] = append([]string{}, v...)
		s.keys = append(s.keys, k)
	}
	slices.SortFunc(s.keys, Compare)
	s.selection = make(map[Key]int)
	s.header = slices.Clone(snap.Header)
}

// Entries returns the non-empty keys and their operations in Compare
// order. It is the iteration used when generating scripts.
func (snap Snapshot) Entries() []Entry {
	keys := make([]Key, 0, len(snap.Ops))
	for k, v := range snap.Ops {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, Compare)
	out := make([]Entry, len(keys))
	for i, k := range keys {
		out[i] = Entry{Key: k, Ops: snap.Ops[k]}
	}
	return out
}

// Entry is one key with its operations.
type Entry struct {
	Key Key
	Ops []string
}
