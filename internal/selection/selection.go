// Package selection tracks which of the currently visible items a user has
// picked in a list view.
package selection

import "strconv"

// State is the aggregate display state of a selection.
type State int

const (
	None State = iota
	Some
	All
)

func (s State) String() string {
	switch s {
	case All:
		return "all"
	case Some:
		return "some"
	default:
		return "none"
	}
}

// Set is a selection over an ordered universe of visible ids.
// The selected ids are always a subset of the visible ids, and the State is
// derived on every call, so it can never disagree with the membership.
// A Set is not safe for concurrent use.
type Set struct {
	visible  []string
	index    map[string]struct{}
	selected map[string]struct{}
}

// NewSet creates an empty selection over visible. Duplicate ids are ignored.
func NewSet(visible []string) *Set {
	s := &Set{selected: make(map[string]struct{})}
	s.SetVisible(visible)
	return s
}

// SetVisible replaces the visible universe, dropping selected ids that are no
// longer visible.
func (s *Set) SetVisible(ids []string) {
	s.visible = make([]string, 0, len(ids))
	s.index = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := s.index[id]; dup {
			continue
		}
		s.index[id] = struct{}{}
		s.visible = append(s.visible, id)
	}
	for id := range s.selected {
		if _, ok := s.index[id]; !ok {
			delete(s.selected, id)
		}
	}
}

// Add makes a new item visible. It starts unselected, so a full selection
// becomes partial.
func (s *Set) Add(id string) {
	if _, ok := s.index[id]; ok {
		return
	}
	s.index[id] = struct{}{}
	s.visible = append(s.visible, id)
}

// Remove drops an item from the visible universe and the selection.
func (s *Set) Remove(id string) {
	if _, ok := s.index[id]; !ok {
		return
	}
	delete(s.index, id)
	delete(s.selected, id)
	for i, v := range s.visible {
		if v == id {
			s.visible = append(s.visible[:i], s.visible[i+1:]...)
			break
		}
	}
}

// Select marks the given visible ids as selected. Unknown ids are ignored.
func (s *Set) Select(ids ...string) {
	for _, id := range ids {
		if _, ok := s.index[id]; ok {
			s.selected[id] = struct{}{}
		}
	}
}

// Toggle flips the selection of a visible id and reports whether it is now
// selected.
func (s *Set) Toggle(id string) bool {
	if _, ok := s.index[id]; !ok {
		return false
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
		return false
	}
	s.selected[id] = struct{}{}
	return true
}

// SelectAll selects every visible id.
func (s *Set) SelectAll() {
	for _, id := range s.visible {
		s.selected[id] = struct{}{}
	}
}

// Clear deselects everything.
func (s *Set) Clear() {
	clear(s.selected)
}

// ToggleHeader is the select-all checkbox action: a full or partial
// selection is cleared, an empty one becomes full.
func (s *Set) ToggleHeader() {
	if s.State() == None {
		s.SelectAll()
		return
	}
	s.Clear()
}

// Has reports whether id is selected.
func (s *Set) Has(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Len returns the number of selected ids.
func (s *Set) Len() int { return len(s.selected) }

// VisibleLen returns the number of visible ids.
func (s *Set) VisibleLen() int { return len(s.visible) }

// Visible returns the visible ids in display order.
func (s *Set) Visible() []string {
	out := make([]string, len(s.visible))
	copy(out, s.visible)
	return out
}

// Selected returns the selected ids in display order.
func (s *Set) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for _, id := range s.visible {
		if _, ok := s.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// State derives the display state from the current membership.
func (s *Set) State() State {
	n := len(s.selected)
	switch {
	case n == 0:
		return None
	case n == len(s.visible):
		return All
	default:
		return Some
	}
}

// Checked reports whether the header checkbox renders as checked.
func (s *Set) Checked() bool { return s.State() != None }

// Indeterminate reports whether the header checkbox renders as partial.
func (s *Set) Indeterminate() bool { return s.State() == Some }

// HeaderLabel is the text shown next to the select-all checkbox.
func (s *Set) HeaderLabel() string {
	switch s.State() {
	case All:
		return "Deselect all"
	case Some:
		return strconv.Itoa(len(s.selected)) + " selected"
	default:
		return "Select all"
	}
}

// CountLabel renders "1 query selected" / "3 queries selected".
func (s *Set) CountLabel(singular, plural string) string {
	noun := plural
	if len(s.selected) == 1 {
		noun = singular
	}
	return strconv.Itoa(len(s.selected)) + " " + noun + " selected"
}
