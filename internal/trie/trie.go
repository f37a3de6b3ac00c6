// Package trie indexes slash separated option paths such as
// "Board Size/5x5" by their segments.
//
// Nodes live in a single arena slice and refer to their children by index,
// so a trie built from a few hundred paths costs a handful of allocations.
package trie

import (
	"sort"
	"strings"
)

type nodeIndex int

const root nodeIndex = 0

type node struct {
	children map[string]nodeIndex
	terminal bool
}

// Trie is a set of segment sequences.
type Trie struct {
	nodes []node
}

// New returns an empty trie.
func New() *Trie {
	t := &Trie{nodes: make([]node, 0, 64)}
	t.newNode()
	return t
}

func (t *Trie) newNode() nodeIndex {
	t.nodes = append(t.nodes, node{children: make(map[string]nodeIndex)})
	return nodeIndex(len(t.nodes) - 1)
}

// Insert adds the sequence to the set.
func (t *Trie) Insert(seq []string) {
	cur := root
	for _, part := range seq {
		next, ok := t.nodes[cur].children[part]
		if !ok {
			next = t.newNode()
			t.nodes[cur].children[part] = next
		}
		cur = next
	}
	t.nodes[cur].terminal = true
}

// InsertPath splits p on "/" and inserts the segments.
func (t *Trie) InsertPath(p string) {
	t.Insert(Split(p))
}

func (t *Trie) find(seq []string) (nodeIndex, bool) {
	cur := root
	for _, part := range seq {
		next, ok := t.nodes[cur].children[part]
		if !ok {
			return 0, false
		}
		cur = next
	}
	return cur, true
}

// Contains reports whether seq was inserted.
func (t *Trie) Contains(seq []string) bool {
	n, ok := t.find(seq)
	return ok && t.nodes[n].terminal
}

// ContainsPath is Contains for a slash separated path.
func (t *Trie) ContainsPath(p string) bool {
	return t.Contains(Split(p))
}

// HasPrefix reports whether some inserted sequence starts with prefix.
func (t *Trie) HasPrefix(prefix []string) bool {
	_, ok := t.find(prefix)
	return ok
}

// Children returns the sorted segments that follow prefix.
func (t *Trie) Children(prefix []string) []string {
	n, ok := t.find(prefix)
	if !ok {
		return nil
	}
	return sortedKeys(t.nodes[n].children)
}

// Paths returns every inserted sequence joined with "/", sorted.
func (t *Trie) Paths() []string {
	var out []string
	t.walk(root, nil, func(seq []string) {
		out = append(out, strings.Join(seq, "/"))
	})
	return out
}

func (t *Trie) walk(n nodeIndex, prefix []string, fn func([]string)) {
	if t.nodes[n].terminal && len(prefix) > 0 {
		fn(prefix)
	}
	for _, key := range sortedKeys(t.nodes[n].children) {
		t.walk(t.nodes[n].children[key], append(prefix[:len(prefix):len(prefix)], key), fn)
	}
}

// Equal reports whether both tries hold the same sequences.
func (t *Trie) Equal(other *Trie) bool {
	if len(t.nodes) != len(other.nodes) {
		return false
	}
	return t.equalNodes(root, other, root)
}

func (t *Trie) equalNodes(a nodeIndex, other *Trie, b nodeIndex) bool {
	na, nb := t.nodes[a], other.nodes[b]
	if na.terminal != nb.terminal || len(na.children) != len(nb.children) {
		return false
	}
	for key, ca := range na.children {
		cb, ok := nb.children[key]
		if !ok || !t.equalNodes(ca, other, cb) {
			return false
		}
	}
	return true
}

// String renders the trie as nested key(children) groups, with "*" marking
// the end of a sequence.
func (t *Trie) String() string {
	var sb strings.Builder
	t.format(&sb, root)
	return sb.String()
}

func (t *Trie) format(sb *strings.Builder, n nodeIndex) {
	if t.nodes[n].terminal {
		sb.WriteString("*")
	}
	for _, key := range sortedKeys(t.nodes[n].children) {
		sb.WriteString(key)
		sb.WriteString("(")
		t.format(sb, t.nodes[n].children[key])
		sb.WriteString(")")
	}
}

// Split breaks an option path on "/". The item part keeps any further
// slashes, so "Board/Size/5" splits into "Board" and "Size/5".
func Split(p string) []string {
	head, tail, ok := strings.Cut(p, "/")
	if !ok {
		return []string{p}
	}
	return []string{head, tail}
}

func sortedKeys(m map[string]nodeIndex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
