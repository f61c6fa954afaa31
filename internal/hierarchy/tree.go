// Package hierarchy reconstructs the cash-flow-type forest from the flat
// lists the Entity Store returns, flattens it into display rows under an
// expansion set, and guards parent changes against cycles.
package hierarchy

import "finconsole/internal/core"

// Node is one cash-flow type with its children in input order.
type Node struct {
	Item     core.CashFlowType
	Children []*Node
}

// ID returns the node's cash-flow-type id.
func (n *Node) ID() int64 { return n.Item.ID }

// HasChildren reports whether the node has at least one child in the
// current forest.
func (n *Node) HasChildren() bool { return len(n.Children) > 0 }

// Build reconstructs a forest from a flat list.
//
// Children keep the order of the input. A node whose parent id is absent,
// or not present in flat, is returned as a root: flat may be a single page
// and the true parent may simply not have been fetched. Build never fails
// and does not look for cycles; nodes caught in a cycle are unreachable
// from any root and therefore not rendered.
func Build(flat []core.CashFlowType) []*Node {
	index := make(map[int64]*Node, len(flat))
	nodes := make([]*Node, 0, len(flat))
	for _, item := range flat {
		n := &Node{Item: item}
		nodes = append(nodes, n)
		if _, dup := index[item.ID]; !dup {
			index[item.ID] = n
		}
	}

	var roots []*Node
	for _, n := range nodes {
		if n.Item.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := index[*n.Item.ParentID]
		if !ok {
			roots = append(roots, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}
	return roots
}

// Row is one visible line of the rendered tree.
type Row struct {
	Node  *Node
	Depth int
	// Expanded is true when the node's children follow it in the output.
	Expanded bool
}

// Toggleable reports whether the row shows an expand/collapse control.
func (r Row) Toggleable() bool { return r.Node.HasChildren() }

// Flatten walks the forest depth-first in pre-order. A node's children are
// emitted, one level deeper, only when the node is in expanded and has
// children. Depth counts from the display roots of this forest.
func Flatten(forest []*Node, expanded IDSet) []Row {
	var rows []Row
	var walk func(nodes []*Node, depth int)
	walk = func(nodes []*Node, depth int) {
		for _, n := range nodes {
			open := n.HasChildren() && expanded.Has(n.ID())
			rows = append(rows, Row{Node: n, Depth: depth, Expanded: open})
			if open {
				walk(n.Children, depth+1)
			}
		}
	}
	walk(forest, 0)
	return rows
}

// AllIDs returns the id of every node reachable from the forest.
func AllIDs(forest []*Node) IDSet {
	ids := IDSet{}
	var walk func(nodes []*Node)
	walk = func(nodes []*Node) {
		for _, n := range nodes {
			ids.Add(n.ID())
			walk(n.Children)
		}
	}
	walk(forest)
	return ids
}
