package maputil

import (
	"slices"
	"strings"
)

// NameIndex looks values up by name case-insensitively, the way SQL Server resolves column names.
// Names are kept in the order they were added.
type NameIndex[T any] struct {
	keys []string
	data map[string]T
}

func NewNameIndex[T any]() *NameIndex[T] {
	return &NameIndex[T]{data: make(map[string]T)}
}

// Add returns false and leaves the index as is when [name] is already taken.
func (n *NameIndex[T]) Add(name string, value T) bool {
	key := strings.ToLower(name)
	if _, ok := n.data[key]; ok {
		return false
	}

	n.keys = append(n.keys, name)
	n.data[key] = value
	return true
}

func (n *NameIndex[T]) Get(name string) (T, bool) {
	val, ok := n.data[strings.ToLower(name)]
	return val, ok
}

func (n *NameIndex[T]) Len() int {
	return len(n.keys)
}

// Keys returns the names with the casing they were added with.
func (n *NameIndex[T]) Keys() []string {
	return slices.Clone(n.keys)
}
