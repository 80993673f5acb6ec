// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ghost implements the ghost-layer construction algorithm of
// spec.md §4.2: given a committed, partitioned forest, it derives the
// ghost tree skeleton (the remote-owned trees that touch this rank's
// domain) and the remote store (this rank's own elements that remote
// ranks need), ready for an external MPI exchange to fill in.
package ghost

import (
	"bytes"
	"context"
	"fmt"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/jackerschott/cmesh-go/lib/containers"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/forest"
	"github.com/jackerschott/cmesh-go/lib/mesherr"
	"github.com/jackerschott/cmesh-go/lib/refcount"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// GhostTree is a remote-owned tree touching this rank's domain
// (spec.md §3 GhostTree). Elements is left empty by construction: the
// core only computes which trees/elements must be exchanged, and
// leaves it as a destination buffer for the external MPI transport
// (spec.md §1 Non-goals) to fill.
type GhostTree struct {
	GlobalID tree.ID
	EClass   eclass.EClass
	Elements []scheme.Element
}

// ProcessOffset is the secondary index spec.md §4.2 calls
// process_offsets: for one remote rank, where that rank's contribution
// begins within a contiguous concatenation of this rank's outgoing
// RemoteBundles, in remote_processes order. (The symmetric offsets for
// the *incoming* ghost_trees side depend on sizes only the sending
// rank knows until the external exchange runs, so they are out of
// reach of this core; see DESIGN.md.)
type ProcessOffset struct {
	Rank                int
	FirstGhostTreeIndex int
	FirstElementIndex   int
}

// Ghost is the populated, read-only ghost layer for one rank (spec.md
// §3 Lifecycles). Build it with Build; release it with Unref.
type Ghost struct {
	refs *refcount.Counter

	forest forest.Forest

	ghostTrees    []GhostTree
	globalToIndex map[tree.ID]int

	remote *remoteStore

	offsets      map[int]ProcessOffset
	offsetsBuilt bool
}

// ownerCacheCapacity bounds the owner-lookup memoizer (lib/ghost/ownercache.go);
// it only needs to be large enough to cover one tree's worth of
// in-flight half-face neighbors, not the whole mesh.
const ownerCacheCapacity = 256

// Build runs the full ghost construction algorithm of spec.md §4.2
// against a committed forest, returning a Ghost with a refcount of 1.
func Build(ctx context.Context, f forest.Forest) (*Ghost, error) {
	ghostTrees, globalToIndex, err := buildGhostTreeSkeleton(f)
	if err != nil {
		return nil, fmt.Errorf("ghost.Build: %w", err)
	}
	dlog.Infof(ctx, "ghost: phase A seeded %d ghost trees", len(ghostTrees))

	remote, err := scanLocalElements(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ghost.Build: %w", err)
	}
	dlog.Infof(ctx, "ghost: phase B produced %d remote bundles", len(remote.processes))

	return &Ghost{
		refs:          refcount.New(),
		forest:        f,
		ghostTrees:    ghostTrees,
		globalToIndex: globalToIndex,
		remote:        remote,
	}, nil
}

// Ref increments the Ghost's refcount (spec.md §5).
func (g *Ghost) Ref() { g.refs.Ref() }

// Unref decrements the Ghost's refcount; at zero it releases the
// ghost/remote arrays and index structures (spec.md §5).
func (g *Ghost) Unref() error {
	var teardownErr error
	g.refs.Unref(func() {
		var errs derror.MultiError
		g.ghostTrees = nil
		g.globalToIndex = nil
		g.remote = nil
		g.offsets = nil
		if len(errs) > 0 {
			teardownErr = errs
		}
	})
	return teardownErr
}

// NumGhostTrees returns the number of entries in the ghost tree
// skeleton.
func (g *Ghost) NumGhostTrees() int { return len(g.ghostTrees) }

// GhostTreeAt returns the i'th ghost tree in ascending global-id
// order.
func (g *Ghost) GhostTreeAt(i int) GhostTree { return g.ghostTrees[i] }

// GhostTreeIndex looks up a global tree id in global_tree_to_ghost_tree
// (spec.md §4.2).
func (g *Ghost) GhostTreeIndex(id tree.ID) (int, bool) {
	idx, ok := g.globalToIndex[id]
	return idx, ok
}

// RemoteProcesses returns the ranks with a non-empty RemoteBundle, in
// the order they were first encountered during Phase B.
func (g *Ghost) RemoteProcesses() []int {
	return g.remote.processes
}

// RemoteBundleFor returns the RemoteBundle built for rank, if any.
func (g *Ghost) RemoteBundleFor(rank int) (*RemoteBundle, bool) {
	b, ok := g.remote.byRank[rank]
	return b, ok
}

// ProcessOffsets returns the rank → ProcessOffset index, building it
// on first call by a single monotone pass over remote_processes and
// their RemoteBundles (spec.md §4.2).
func (g *Ghost) ProcessOffsets() map[int]ProcessOffset {
	if g.offsetsBuilt {
		return g.offsets
	}
	offsets := make(map[int]ProcessOffset, len(g.remote.processes))
	var treeIdx, elemIdx int
	for _, rank := range g.remote.processes {
		offsets[rank] = ProcessOffset{Rank: rank, FirstGhostTreeIndex: treeIdx, FirstElementIndex: elemIdx}
		bundle := g.remote.byRank[rank]
		treeIdx += len(bundle.Trees)
		for _, t := range bundle.Trees {
			elemIdx += len(t.Elements)
		}
	}
	g.offsets = offsets
	g.offsetsBuilt = true
	return offsets
}

// ghostDebugView is the shape DebugJSON serializes; stable field names
// independent of Ghost's internal layout, same convention as
// cmesh.Cmesh.DebugJSON's debugView.
type ghostDebugView struct {
	NumGhostTrees int
	GhostTreeIDs  containers.Set[int64]
	RemoteRanks   containers.Set[int64]
}

// DebugJSON dumps a human-inspectable snapshot of the ghost layer, not
// a persistence format: there is no corresponding load path, so this
// does not reopen the "no NetCDF/VTK writers" non-goal.
func (g *Ghost) DebugJSON() ([]byte, error) {
	treeIDs := make(containers.Set[int64], len(g.ghostTrees))
	for _, gt := range g.ghostTrees {
		treeIDs.Insert(int64(gt.GlobalID))
	}
	ranks := make(containers.Set[int64], len(g.remote.processes))
	for _, r := range g.remote.processes {
		ranks.Insert(int64(r))
	}
	view := ghostDebugView{
		NumGhostTrees: len(g.ghostTrees),
		GhostTreeIDs:  treeIDs,
		RemoteRanks:   ranks,
	}
	var buf bytes.Buffer
	if err := lowmemjson.Encode(&buf, view); err != nil {
		return nil, fmt.Errorf("ghost.DebugJSON: %w", err)
	}
	return buf.Bytes(), nil
}

// ghostGlobalID returns the global tree id of forest-local tree itree,
// under this core's non-mixed assumption that a forest refines exactly
// its cmesh's local trees 1:1 (see forest.Forest.CmeshLtreeidToLtreeid).
func ghostGlobalID(f forest.Forest, itree int64) (tree.ID, error) {
	cm := f.Cmesh()
	first, err := cm.FirstTreeID()
	if err != nil {
		return tree.NoTree, fmt.Errorf("%w: forest's cmesh is not committed: %v", mesherr.ContractViolation, err)
	}
	return first + tree.ID(itree), nil
}
