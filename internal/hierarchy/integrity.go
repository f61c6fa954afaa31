package hierarchy

import (
	"errors"

	"finconsole/internal/core"
)

var (
	ErrSelfParent       = errors.New("a cash flow type cannot be its own parent")
	ErrDescendantParent = errors.New("a cash flow type cannot be moved under one of its descendants")
	ErrParentNotFound   = errors.New("the selected parent cash flow type does not exist")
)

// Descendants returns the ids of every node below id in the complete list
// all. The walk tolerates cycles already present in the data.
func Descendants(all []core.CashFlowType, id int64) IDSet {
	children := make(map[int64][]int64, len(all))
	for _, c := range all {
		if c.ParentID != nil {
			children[*c.ParentID] = append(children[*c.ParentID], c.ID)
		}
	}

	out := IDSet{}
	queue := []int64{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range children[cur] {
			if child == id || out.Has(child) {
				continue
			}
			out.Add(child)
			queue = append(queue, child)
		}
	}
	return out
}

// ValidateParent checks a parent assignment before it is written. nodeID
// is zero for a node that does not exist yet. A nil parentID (detach to
// root) is always accepted.
func ValidateParent(all []core.CashFlowType, nodeID int64, parentID *int64) error {
	if parentID == nil {
		return nil
	}
	if nodeID != 0 && *parentID == nodeID {
		return ErrSelfParent
	}
	found := false
	for _, c := range all {
		if c.ID == *parentID {
			found = true
			break
		}
	}
	if !found {
		return ErrParentNotFound
	}
	if nodeID != 0 && Descendants(all, nodeID).Has(*parentID) {
		return ErrDescendantParent
	}
	return nil
}

// Option is one entry of a parent select list.
type Option struct {
	ID    int64
	Label string
	Depth int
}

// ParentOptions lists every type that may become the parent of nodeID, in
// tree order with its depth for indentation. The node itself and its
// descendants are left out; nodeID zero (a new node) excludes nothing.
func ParentOptions(all []core.CashFlowType, nodeID int64) []Option {
	excluded := IDSet{}
	if nodeID != 0 {
		excluded = Descendants(all, nodeID)
		excluded.Add(nodeID)
	}

	forest := Build(all)
	var opts []Option
	for _, row := range Flatten(forest, AllIDs(forest)) {
		if excluded.Has(row.Node.ID()) {
			continue
		}
		opts = append(opts, Option{ID: row.Node.ID(), Label: row.Node.Item.Label(), Depth: row.Depth})
	}
	return opts
}
