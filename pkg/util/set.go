package util

import (
	"encoding/json"
	"maps"
	"slices"
)

// Set holds unique comparable values. Its JSON form is an array
type Set[K comparable] map[K]struct{}

// SetOf builds a Set from the given members, dropping duplicates
func SetOf[K comparable](members ...K) Set[K] {
	res := make(Set[K], len(members))
	for _, m := range members {
		res[m] = struct{}{}
	}
	return res
}

func (s Set[K]) Add(m K) {
	s[m] = struct{}{}
}

func (s Set[K]) Remove(m K) {
	delete(s, m)
}

func (s Set[K]) Contains(m K) bool {
	_, ok := s[m]
	return ok
}

func (s Set[K]) Len() int {
	return len(s)
}

func (s Set[K]) IsEmpty() bool {
	return len(s) == 0
}

// Items returns the members in no particular order
func (s Set[K]) Items() []K {
	return slices.Collect(maps.Keys(s))
}

func (s Set[K]) MarshalJSON() ([]byte, error) {
	members := s.Items()
	if members == nil {
		members = []K{}
	}
	return json.Marshal(members)
}

func (s *Set[K]) UnmarshalJSON(data []byte) error {
	var members []K
	if err := json.Unmarshal(data, &members); err != nil {
		return err
	}
	*s = SetOf(members...)
	return nil
}
