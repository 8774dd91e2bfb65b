package script

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.SetOperations("D1", []string{"FT()", "ZF(1)"}))
	return s
}

func TestSetOperationReplaces(t *testing.T) {
	s := seeded(t)

	pos, err := s.SetOperation("D1", "FT(size=1024)", false, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	assert.Equal(t, []string{"FT(size=1024)", "ZF(1)"}, s.Operations("D1"))
	assert.Equal(t, 0, s.Selection("D1"))
}

func TestSetOperationAppendsAfterSelection(t *testing.T) {
	s := seeded(t)
	s.Select("D1", 0)

	pos, err := s.SetOperation("D1", "FT(size=1024)", true, -1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, []string{"FT()", "FT(size=1024)", "ZF(1)"}, s.Operations("D1"))

	s.Select("D1", 2)
	pos, err = s.SetOperation("D1", "FT(size=2048)", true, -1)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
	assert.Len(t, s.Operations("D1"), 4)
}

func TestSetOperationAppendWithoutSelectionFollowsMatch(t *testing.T) {
	s := seeded(t)
	pos, err := s.SetOperation("D1", "ZF(2)", true, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, []string{"FT()", "ZF(1)", "ZF(2)"}, s.Operations("D1"))
}

func TestSetOperationNewNameGoesLast(t *testing.T) {
	s := seeded(t)
	pos, err := s.SetOperation("D1", " SB( ) ", false, -1)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
	assert.Equal(t, []string{"FT()", "ZF(1)", "SB()"}, s.Operations("D1"))

	pos, err = s.SetOperation("D2", "FT()", false, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
}

func TestSetOperationExplicitIndex(t *testing.T) {
	s := seeded(t)
	pos, err := s.SetOperation("D1", "SB()", false, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)
	assert.Equal(t, []string{"FT()", "SB()", "ZF(1)"}, s.Operations("D1"))

	pos, err = s.SetOperation("D1", "EXTRACT()", false, 99)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)
}

func TestSetOperationInvalid(t *testing.T) {
	s := seeded(t)
	pos, err := s.SetOperation("D1", "", false, -1)
	assert.Equal(t, -1, pos)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	pos, err = s.SetOperation("D1", "FT(size=1", false, -1)
	assert.Equal(t, -1, pos)
	assert.ErrorIs(t, err, ErrInvalidOperation)

	_, err = s.SetOperation("X1", "FT()", false, -1)
	assert.ErrorIs(t, err, ErrInvalidKey)

	assert.Equal(t, []string{"FT()", "ZF(1)"}, s.Operations("D1"))
}

func TestOperationsMissingKey(t *testing.T) {
	s := NewStore()
	ops := s.Operations("D3")
	assert.NotNil(t, ops)
	assert.Empty(t, ops)
}

func TestRemoveAt(t *testing.T) {
	s := seeded(t)
	s.Select("D1", 1)

	s.RemoveAt("D1", 5)
	s.RemoveAt("D1", -1)
	assert.Len(t, s.Operations("D1"), 2)

	s.RemoveAt("D1", 1)
	assert.Equal(t, []string{"FT()"}, s.Operations("D1"))
	assert.Equal(t, 0, s.Selection("D1"))

	s.RemoveAt("D1", 0)
	assert.Empty(t, s.Operations("D1"))
	assert.Equal(t, -1, s.Selection("D1"))
}

func TestKeysStayOrdered(t *testing.T) {
	s := NewStore()
	for _, k := range []Key{"P1", "D2", "D_ALL", "D2,3", "D1"} {
		_, err := s.SetOperation(k, "FT()", false, -1)
		require.NoError(t, err)
	}
	want := []Key{"D1", "D2,3", "D2", "D_ALL", "P1"}
	if diff := cmp.Diff(want, s.Keys()); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := seeded(t)
	require.NoError(t, s.SetHeaderOperation("sw(5000.0,2000.0)"))
	snap := s.Snapshot()

	_, err := s.SetOperation("D1", "FT(size=1)", false, -1)
	require.NoError(t, err)
	_, err = s.SetOperation("D2", "ZF()", false, -1)
	require.NoError(t, err)
	assert.Equal(t, []string{"FT()", "ZF(1)"}, snap.Ops["D1"], "snapshot must be a deep copy")

	s.Restore(snap)
	assert.Equal(t, []string{"FT()", "ZF(1)"}, s.Operations("D1"))
	assert.Equal(t, []Key{"D1"}, s.Keys())
	assert.Equal(t, []string{"sw(5000.0,2000.0)"}, s.Header())

	snap.Ops["D1"][0] = "mutated"
	assert.Equal(t, "FT()", s.Operations("D1")[0], "restore must copy")
}

func TestClearAndRetain(t *testing.T) {
	s := NewStore()
	for _, k := range []Key{"D1", "D2", "D3", "D2,3", "D_ALL", "P1,2"} {
		_, err := s.SetOperation(k, "FT()", false, -1)
		require.NoError(t, err)
	}
	s.Retain(2)
	assert.Equal(t, []Key{"D1", "D2", "D_ALL", "P1,2"}, s.Keys())

	s.Clear()
	assert.Empty(t, s.Keys())
	assert.Empty(t, s.Header())
}

func TestHeaderOperations(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.SetHeaderOperation("sw(5000.0)"))
	require.NoError(t, s.SetHeaderOperation("label('H1')"))
	require.NoError(t, s.SetHeaderOperation("sw(6000.0)"))
	assert.Equal(t, []string{"sw(6000.0)", "label('H1')"}, s.Header())
	assert.Error(t, s.SetHeaderOperation("sw("))
}

func TestEntriesSkipEmpty(t *testing.T) {
	s := seeded(t)
	require.NoError(t, s.SetOperations("D2", nil))
	entries := s.Snapshot().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, Key("D1"), entries[0].Key)
}

func TestConcurrentEdits(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := DimKey(i % 3)
			for j := 0; j < 50; j++ {
				_, _ = s.SetOperation(key, "ZF(1)", true, -1)
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	total := 0
	for _, k := range s.Keys() {
		total += len(s.Operations(k))
	}
	assert.Equal(t, 8*50, total)
}
