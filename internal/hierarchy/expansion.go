package hierarchy

import (
	"slices"
	"strconv"
	"strings"
)

// IDSet is a set of cash-flow-type ids, used as the expansion state of a
// tree view.
type IDSet map[int64]struct{}

// NewIDSet returns a set holding ids.
func NewIDSet(ids ...int64) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s IDSet) Has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Add(id int64) { s[id] = struct{}{} }

func (s IDSet) Remove(id int64) { delete(s, id) }

// Toggle flips membership of id and reports whether id is now present.
func (s IDSet) Toggle(id int64) bool {
	if s.Has(id) {
		delete(s, id)
		return false
	}
	s[id] = struct{}{}
	return true
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []int64 {
	out := make([]int64, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// String renders the set as a comma-separated list, e.g. "1,4,9".
func (s IDSet) String() string {
	ids := s.Sorted()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
