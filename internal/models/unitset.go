package models

import "encoding/json"

// UnitSet is an insertion-ordered set of unit names. It is immutable:
// every mutating method returns a new set and leaves the receiver alone,
// so document snapshots can share sets safely.
type UnitSet struct {
	names []string
	index map[string]struct{}
}

// NewUnitSet builds a set from names, dropping duplicates and keeping first occurrence order.
func NewUnitSet(names ...string) UnitSet {
	s := UnitSet{
		names: make([]string, 0, len(names)),
		index: make(map[string]struct{}, len(names)),
	}
	for _, n := range names {
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// Has reports membership
func (s UnitSet) Has(name string) bool {
	_, ok := s.index[name]
	return ok
}

// Len returns the number of names in the set
func (s UnitSet) Len() int {
	return len(s.names)
}

// Names returns a copy of the names in insertion order
func (s UnitSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// With returns a set that also contains name
func (s UnitSet) With(name string) UnitSet {
	if s.Has(name) {
		return s
	}
	return NewUnitSet(append(s.Names(), name)...)
}

// Without returns a set with name removed
func (s UnitSet) Without(name string) UnitSet {
	if !s.Has(name) {
		return s
	}
	out := make([]string, 0, len(s.names)-1)
	for _, n := range s.names {
		if n != name {
			out = append(out, n)
		}
	}
	return NewUnitSet(out...)
}

// Toggle removes name if present, adds it otherwise
func (s UnitSet) Toggle(name string) UnitSet {
	if s.Has(name) {
		return s.Without(name)
	}
	return s.With(name)
}

// Rename replaces oldName with newName in place. Membership is preserved:
// a set without oldName is returned unchanged.
func (s UnitSet) Rename(oldName, newName string) UnitSet {
	if !s.Has(oldName) || oldName == newName {
		return s
	}
	out := make([]string, len(s.names))
	for i, n := range s.names {
		if n == oldName {
			n = newName
		}
		out[i] = n
	}
	return NewUnitSet(out...)
}

// Equal reports whether both sets hold the same names in the same order
func (s UnitSet) Equal(o UnitSet) bool {
	if len(s.names) != len(o.names) {
		return false
	}
	for i := range s.names {
		if s.names[i] != o.names[i] {
			return false
		}
	}
	return true
}

// MarshalJSON writes the set as a JSON array
func (s UnitSet) MarshalJSON() ([]byte, error) {
	if s.names == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s.names)
}

// UnmarshalJSON reads a JSON array. null is read as the empty set.
func (s *UnitSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewUnitSet(names...)
	return nil
}
