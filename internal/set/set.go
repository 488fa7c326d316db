package set

import "github.com/plenum-go/plenum/internal/generic"

type Set[T comparable] map[T]struct{}

func New[T comparable](vals ...T) Set[T] {
	set := make(Set[T], len(vals))
	for _, val := range vals {
		set.Add(val)
	}

	return set
}

func FromSlice[T comparable](sl []T) Set[T] {
	set := make(Set[T], len(sl))
	for _, val := range sl {
		set.Add(val)
	}

	return set
}

func (s Set[T]) Add(val T) {
	s[val] = struct{}{}
}

func (s Set[T]) Remove(val T) {
	delete(s, val)
}

func (s Set[T]) Has(val T) bool {
	_, ok := s[val]
	return ok
}

func (s Set[T]) Values() []T {
	return generic.MapKeys(s)
}

func (s Set[T]) Clone() Set[T] {
	newset := make(Set[T], len(s))
	generic.MapCopy(s, newset)

	return newset
}

// Union returns a new set containing the values present in either set.
func (s Set[T]) Union(ss Set[T]) Set[T] {
	newset := make(Set[T], generic.Max(len(s), len(ss)))
	generic.MapCopy(s, newset)
	generic.MapCopy(ss, newset)

	return newset
}

// Intersect returns a new set containing the values present in both sets.
func (s Set[T]) Intersect(ss Set[T]) Set[T] {
	newset := make(Set[T], generic.Min(len(s), len(ss)))

	for val := range s {
		if ss.Has(val) {
			newset.Add(val)
		}
	}

	return newset
}

func (s Set[T]) Equals(ss Set[T]) bool {
	if len(s) != len(ss) {
		return false
	}

	for val := range s {
		if !ss.Has(val) {
			return false
		}
	}

	return true
}
