package compiler

import (
	"fmt"
	"sort"
	"strings"
)

// Leaf is the rule payload attached to the node that ends an expanded
// condition set's path.
type Leaf struct {
	RuleID int
	Action string
}

// Node is a trie node. Children and terminal leaves are kept apart, so a
// node can be both a prefix of longer paths and the end of shorter ones, and
// several rules with identical condition sets share one node.
type Node struct {
	children map[ConditionID]*Node
	leaves   []Leaf
}

func newNode() *Node {
	return &Node{}
}

// Child returns the child keyed by id.
func (n *Node) Child(id ConditionID) (*Node, bool) {
	c, ok := n.children[id]
	return c, ok
}

// Leaves returns the rules whose condition sets end at this node. The
// returned slice must not be modified.
func (n *Node) Leaves() []Leaf {
	return n.leaves
}

// Terminal reports whether any rule ends at this node.
func (n *Node) Terminal() bool {
	return len(n.leaves) > 0
}

// ChildIDs returns the child keys in ascending order.
func (n *Node) ChildIDs() []ConditionID {
	ids := make([]ConditionID, 0, len(n.children))
	for id := range n.children {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Trie indexes expanded condition sets by their ascending identifier paths.
type Trie struct {
	root  *Node
	nodes int
}

func newTrie() *Trie {
	return &Trie{root: newNode(), nodes: 1}
}

// Root returns the root node. Leaves on the root belong to rules without
// conditions.
func (t *Trie) Root() *Node {
	return t.root
}

// NodeCount returns the number of nodes including the root.
func (t *Trie) NodeCount() int {
	return t.nodes
}

// insert adds path (already sorted ascending and de-duplicated) and attaches
// leaf at its final node.
func (t *Trie) insert(path []ConditionID, leaf Leaf) {
	n := t.root
	for _, id := range path {
		child, ok := n.children[id]
		if !ok {
			if n.children == nil {
				n.children = make(map[ConditionID]*Node)
			}
			child = newNode()
			n.children[id] = child
			t.nodes++
		}
		n = child
	}

	for _, l := range n.leaves {
		if l.RuleID == leaf.RuleID {
			return
		}
	}
	n.leaves = append(n.leaves, leaf)
}

// Render returns one line per node in depth-first, ascending-id order. Each
// line shows the path depth, the condition id and atom, and any rules ending
// at the node.
func (t *Trie) Render(table *Table) []string {
	var lines []string
	if t.root.Terminal() {
		lines = append(lines, "(root)"+formatLeaves(t.root.leaves))
	}

	var walk func(n *Node, depth int)
	walk = func(n *Node, depth int) {
		for _, id := range n.ChildIDs() {
			child := n.children[id]
			a, _ := table.Atom(id)
			lines = append(lines, fmt.Sprintf("%s[%d] %s%s", strings.Repeat("  ", depth), id, a, formatLeaves(child.leaves)))
			walk(child, depth+1)
		}
	}
	walk(t.root, 0)

	return lines
}

func formatLeaves(leaves []Leaf) string {
	if len(leaves) == 0 {
		return ""
	}
	parts := make([]string, len(leaves))
	for i, l := range leaves {
		parts[i] = fmt.Sprintf("rule %d: %s", l.RuleID, l.Action)
	}
	return " => " + strings.Join(parts, "; ")
}
