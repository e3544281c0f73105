package selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_SelectAllEqualsVisible(t *testing.T) {
	s := NewSet([]string{"a", "b", "c"})
	s.SelectAll()

	assert.Equal(t, All, s.State())
	assert.Equal(t, s.Visible(), s.Selected())
	assert.Equal(t, "Deselect all", s.HeaderLabel())
	assert.True(t, s.Checked())
	assert.False(t, s.Indeterminate())
}

func TestSet_EmptyUniverseIsNeverAll(t *testing.T) {
	s := NewSet(nil)
	s.SelectAll()
	assert.Equal(t, None, s.State())
	assert.Equal(t, "Select all", s.HeaderLabel())
}

func TestSet_ToggleWhileAllDemotesToSome(t *testing.T) {
	s := NewSet([]string{"a", "b", "c"})
	s.SelectAll()

	assert.False(t, s.Toggle("b"))
	assert.Equal(t, Some, s.State())
	assert.True(t, s.Indeterminate())
	assert.Equal(t, "2 selected", s.HeaderLabel())
	assert.Equal(t, []string{"a", "c"}, s.Selected())
}

func TestSet_AddWhileAllDemotesToSome(t *testing.T) {
	s := NewSet([]string{"a", "b"})
	s.SelectAll()

	s.Add("c")
	assert.Equal(t, Some, s.State())
	assert.False(t, s.Has("c"))
}

func TestSet_RemoveVisibleItem(t *testing.T) {
	s := NewSet([]string{"a", "b", "c"})
	s.Select("a", "b")
	require.Equal(t, Some, s.State())

	// removing the only unselected item leaves every remaining item selected
	s.Remove("c")
	assert.Equal(t, All, s.State())

	s.Remove("a")
	assert.Equal(t, []string{"b"}, s.Selected())
	assert.Equal(t, []string{"b"}, s.Visible())
}

func TestSet_ToggleHeader(t *testing.T) {
	s := NewSet([]string{"a", "b"})

	s.ToggleHeader()
	assert.Equal(t, All, s.State())

	s.ToggleHeader()
	assert.Equal(t, None, s.State())

	s.Toggle("a")
	s.ToggleHeader()
	assert.Equal(t, None, s.State(), "partial selection clears")
}

func TestSet_SetVisiblePrunesSelection(t *testing.T) {
	s := NewSet([]string{"a", "b", "c"})
	s.SelectAll()

	s.SetVisible([]string{"b", "c", "d"})
	assert.Equal(t, []string{"b", "c"}, s.Selected())
	assert.Equal(t, Some, s.State())
}

func TestSet_IgnoresUnknownAndDuplicateIDs(t *testing.T) {
	s := NewSet([]string{"a", "a", "b"})
	assert.Equal(t, 2, s.VisibleLen())

	s.Select("zzz")
	assert.False(t, s.Toggle("zzz"))
	assert.Equal(t, 0, s.Len())
}

func TestSet_CountLabel(t *testing.T) {
	s := NewSet([]string{"a", "b"})
	s.Select("a")
	assert.Equal(t, "1 query selected", s.CountLabel("query", "queries"))
	s.Select("b")
	assert.Equal(t, "2 queries selected", s.CountLabel("query", "queries"))
}
