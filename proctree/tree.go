// Package proctree arranges one poll's process samples into a forest.
//
// The forest is deterministic for a given input: roots and every child list
// are sorted by pid ascending, so two builds over the same samples render
// identically. There is no explicit synthetic root node; Roots is its child
// list. A node whose parent pid cannot be resolved, or that sits on a
// parent-chain cycle, becomes a root flagged Orphan.
package proctree

import (
	"sort"

	"gitlab.com/tinyland/lab/proc-pulse/sampler"
)

// Node is one process in the forest.
type Node struct {
	PID      int32
	Sample   sampler.ProcessSample
	Children []int32 // pid ascending
	Depth    int
	Orphan   bool
}

// Forest is the built tree set.
type Forest struct {
	Nodes map[int32]*Node
	Roots []int32 // pid ascending
	Size  int
}

// Build constructs the forest in O(n). Duplicate pids keep the last sample.
func Build(samples []sampler.ProcessSample) *Forest {
	f := &Forest{Nodes: make(map[int32]*Node, len(samples))}

	for _, s := range samples {
		f.Nodes[s.PID] = &Node{PID: s.PID, Sample: s}
	}
	f.Size = len(f.Nodes)

	onCycle := markCycles(f.Nodes)

	for pid, n := range f.Nodes {
		s := n.Sample
		switch {
		case isSelfRoot(s):
			f.Roots = append(f.Roots, pid)
		case onCycle[pid]:
			n.Orphan = true
			f.Roots = append(f.Roots, pid)
		default:
			parent, ok := f.Nodes[s.PPID]
			if !ok {
				n.Orphan = true
				f.Roots = append(f.Roots, pid)
				break
			}
			parent.Children = append(parent.Children, pid)
		}
	}

	sortPids(f.Roots)
	for _, n := range f.Nodes {
		sortPids(n.Children)
	}

	f.assignDepths()
	return f
}

// isSelfRoot reports whether the sample is a legitimate top of a tree: an
// unknown parent pid of zero and self-parenting both count.
func isSelfRoot(s sampler.ProcessSample) bool {
	return !s.PPIDKnown || s.PPID == 0 || s.PPID == s.PID
}

// markCycles finds every pid whose parent chain loops back to itself.
// Each node is walked at most once, keeping the whole pass linear.
func markCycles(nodes map[int32]*Node) map[int32]bool {
	const (
		white uint8 = iota
		grey
		black
	)

	color := make(map[int32]uint8, len(nodes))
	onCycle := make(map[int32]bool)

	for start := range nodes {
		if color[start] != white {
			continue
		}

		var path []int32
		cur := start
		for {
			if color[cur] == grey {
				// The chain re-entered the current path: everything from
				// the first occurrence of cur onwards is the cycle.
				for i := len(path) - 1; i >= 0; i-- {
					onCycle[path[i]] = true
					if path[i] == cur {
						break
					}
				}
				break
			}
			if color[cur] == black {
				break
			}
			color[cur] = grey
			path = append(path, cur)

			s := nodes[cur].Sample
			if isSelfRoot(s) {
				break
			}
			if _, ok := nodes[s.PPID]; !ok {
				break
			}
			cur = s.PPID
		}

		for _, p := range path {
			color[p] = black
		}
	}
	return onCycle
}

func (f *Forest) assignDepths() {
	queue := make([]int32, 0, len(f.Roots))
	queue = append(queue, f.Roots...)
	for _, pid := range queue {
		f.Nodes[pid].Depth = 0
	}
	for len(queue) > 0 {
		pid := queue[0]
		queue = queue[1:]
		n := f.Nodes[pid]
		for _, child := range n.Children {
			f.Nodes[child].Depth = n.Depth + 1
			queue = append(queue, child)
		}
	}
}

// Walk visits the forest depth-first, roots first and children in pid
// order. Returning false from fn stops the walk.
func (f *Forest) Walk(fn func(*Node) bool) {
	for _, pid := range f.Roots {
		if !f.walkFrom(pid, fn) {
			return
		}
	}
}

func (f *Forest) walkFrom(pid int32, fn func(*Node) bool) bool {
	n, ok := f.Nodes[pid]
	if !ok {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, child := range n.Children {
		if !f.walkFrom(child, fn) {
			return false
		}
	}
	return true
}

// Flatten returns the pids in Walk order. Handy for list rendering where a
// stable row order matters.
func (f *Forest) Flatten() []int32 {
	out := make([]int32, 0, f.Size)
	f.Walk(func(n *Node) bool {
		out = append(out, n.PID)
		return true
	})
	return out
}

func sortPids(pids []int32) {
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
}
