// util/generic.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package util

import (
	"maps"
	"slices"

	"golang.org/x/exp/constraints"
)

func Select[T any](sel bool, a, b T) T {
	if sel {
		return a
	}
	return b
}

// SortedMapKeys returns the keys of the given map, sorted from low to high.
func SortedMapKeys[K constraints.Ordered, V any](m map[K]V) []K {
	return slices.Sorted(maps.Keys(m))
}

// FilterSliceInPlace keeps the elements of s for which pred returns
// true, in order, reusing the storage of s.
func FilterSliceInPlace[V any](s []V, pred func(V) bool) []V {
	n := 0
	for _, item := range s {
		if pred(item) {
			s[n] = item
			n++
		}
	}
	clear(s[n:])
	return s[:n]
}

// OnceSet records keys; Add returns true only the first time a key is
// seen. It is used to keep repeated failures from spamming the log.
type OnceSet[K comparable] struct {
	m map[K]struct{}
}

func (o *OnceSet[K]) Add(k K) bool {
	if o.m == nil {
		o.m = make(map[K]struct{})
	}
	if _, ok := o.m[k]; ok {
		return false
	}
	o.m[k] = struct{}{}
	return true
}

func (o *OnceSet[K]) Contains(k K) bool {
	_, ok := o.m[k]
	return ok
}

func (o *OnceSet[K]) Len() int {
	return len(o.m)
}
