// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package ghost_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/cmesh"
	"github.com/jackerschott/cmesh-go/lib/comm"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/forest"
	"github.com/jackerschott/cmesh-go/lib/ghost"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// lineCmesh builds a committed, partitioned cmesh of numGlobalTrees
// Line trees joined 0-1-2-...-(n-1), with this rank owning exactly
// tree rank (one tree per rank, size == numGlobalTrees).
func lineCmesh(t *testing.T, numGlobalTrees int64, rank int) *cmesh.Cmesh {
	t.Helper()
	cm := cmesh.New()
	require.NoError(t, cm.SetMPIComm(comm.NewSimComm(rank, int(numGlobalTrees)), false))
	require.NoError(t, cm.SetPartitioned(true, numGlobalTrees, tree.ID(rank), 0))
	require.NoError(t, cm.SetNumTrees(1))
	require.NoError(t, cm.SetTree(tree.ID(rank), eclass.Line))
	if rank > 0 {
		require.NoError(t, cm.JoinFaces(tree.ID(rank-1), tree.ID(rank), 1, 0, eclass.Line, 0))
	}
	if int64(rank) < numGlobalTrees-1 {
		require.NoError(t, cm.JoinFaces(tree.ID(rank), tree.ID(rank+1), 1, 0, eclass.Line, 0))
	}
	require.NoError(t, cm.Commit(context.Background()))
	return cm
}

func constOwner(owners map[tree.ID]int, self int) func(tree.ID, scheme.Element, eclass.EClass) (int, error) {
	return func(g tree.ID, _ scheme.Element, _ eclass.EClass) (int, error) {
		if r, ok := owners[g]; ok {
			return r, nil
		}
		return self, nil
	}
}

func TestPhaseAAndBMiddleRank(t *testing.T) {
	t.Parallel()
	cm := lineCmesh(t, 3, 1)
	lineScheme := scheme.Hypercube(eclass.Line)

	e0 := lineScheme.NewElement(1, 0) // left half of tree 1
	e1 := lineScheme.NewElement(1, 1) // right half of tree 1

	f := forest.NewStaticForest(
		cm, 1, false, false,
		[]tree.ID{1}, []eclass.EClass{eclass.Line},
		[][]scheme.Element{{e0, e1}},
		map[eclass.EClass]scheme.Scheme{eclass.Line: lineScheme},
		constOwner(map[tree.ID]int{0: 0, 2: 2}, 1),
		1, 3,
	)
	f.SetNeighborFixture(0, 0, 0, forest.FaceNeighborFixture{
		NeighborGlobalTree: 0, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 1)},
	})
	f.SetNeighborFixture(0, 1, 1, forest.FaceNeighborFixture{
		NeighborGlobalTree: 2, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 0)},
	})

	g, err := ghost.Build(context.Background(), f)
	require.NoError(t, err)
	defer g.Unref()

	require.Equal(t, 2, g.NumGhostTrees())
	assert.Equal(t, tree.ID(0), g.GhostTreeAt(0).GlobalID)
	assert.Equal(t, tree.ID(2), g.GhostTreeAt(1).GlobalID)
	idx, ok := g.GhostTreeIndex(2)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	_, ok = g.GhostTreeIndex(99)
	assert.False(t, ok)

	assert.ElementsMatch(t, []int{0, 2}, g.RemoteProcesses())

	b0, ok := g.RemoteBundleFor(0)
	require.True(t, ok)
	require.Len(t, b0.Trees, 1)
	assert.Equal(t, tree.ID(1), b0.Trees[0].GlobalID)
	require.Len(t, b0.Trees[0].Elements, 1)
	assert.Equal(t, e0, b0.Trees[0].Elements[0])

	b2, ok := g.RemoteBundleFor(2)
	require.True(t, ok)
	require.Len(t, b2.Trees, 1)
	require.Len(t, b2.Trees[0].Elements, 1)
	assert.Equal(t, e1, b2.Trees[0].Elements[0])
}

// TestGhostDedup is spec.md §8 S6: two faces of the same element
// pointing at the same remote rank must add that element only once.
func TestGhostDedup(t *testing.T) {
	t.Parallel()
	cm := lineCmesh(t, 1, 0)
	lineScheme := scheme.Hypercube(eclass.Line)
	e := lineScheme.NewElement(0, 0)

	f := forest.NewStaticForest(
		cm, 0, false, false,
		[]tree.ID{0}, []eclass.EClass{eclass.Line},
		[][]scheme.Element{{e}},
		map[eclass.EClass]scheme.Scheme{eclass.Line: lineScheme},
		constOwner(map[tree.ID]int{9: 2}, 0),
		0, 3,
	)
	neighbor := lineScheme.NewElement(0, 0)
	f.SetNeighborFixture(0, 0, 0, forest.FaceNeighborFixture{
		NeighborGlobalTree: 9, NeighborEClass: eclass.Line, Children: []scheme.Element{neighbor},
	})
	f.SetNeighborFixture(0, 0, 1, forest.FaceNeighborFixture{
		NeighborGlobalTree: 9, NeighborEClass: eclass.Line, Children: []scheme.Element{neighbor},
	})

	g, err := ghost.Build(context.Background(), f)
	require.NoError(t, err)
	defer g.Unref()

	b, ok := g.RemoteBundleFor(2)
	require.True(t, ok)
	require.Len(t, b.Trees, 1)
	assert.Len(t, b.Trees[0].Elements, 1, "duplicate owner across two faces of the same element must collapse to one copy")
}

// TestGhostTreesSortedAndDeduped is spec.md §8 P5: ghost_trees is
// sorted ascending by global id, with no duplicate entries even when
// multiple local faces reference the same non-local neighbor.
func TestGhostTreesSortedAndDeduped(t *testing.T) {
	t.Parallel()
	cm := cmesh.New()
	require.NoError(t, cm.SetMPIComm(comm.NewSimComm(0, 2), false))
	require.NoError(t, cm.SetPartitioned(true, 5, 0, 0))
	require.NoError(t, cm.SetNumTrees(1))
	require.NoError(t, cm.SetTree(0, eclass.Quad))
	require.NoError(t, cm.JoinFaces(0, 3, 1, 0, eclass.Quad, 0))
	require.NoError(t, cm.JoinFaces(0, 1, 0, 1, eclass.Quad, 0))
	require.NoError(t, cm.JoinFaces(0, 3, 2, 1, eclass.Quad, 0))
	require.NoError(t, cm.Commit(context.Background()))

	quadScheme := scheme.Hypercube(eclass.Quad)
	f := forest.NewStaticForest(
		cm, 0, false, false,
		[]tree.ID{0}, []eclass.EClass{eclass.Quad},
		[][]scheme.Element{{quadScheme.NewElement(0, 0, 0)}},
		map[eclass.EClass]scheme.Scheme{eclass.Quad: quadScheme},
		constOwner(nil, 0),
		0, 2,
	)

	g, err := ghost.Build(context.Background(), f)
	require.NoError(t, err)
	defer g.Unref()

	require.Equal(t, 2, g.NumGhostTrees())
	assert.Equal(t, tree.ID(1), g.GhostTreeAt(0).GlobalID)
	assert.Equal(t, tree.ID(3), g.GhostTreeAt(1).GlobalID)
	for i := 0; i < g.NumGhostTrees(); i++ {
		idx, ok := g.GhostTreeIndex(g.GhostTreeAt(i).GlobalID)
		require.True(t, ok)
		assert.Equal(t, i, idx)
	}
}

// TestProcessOffsetsMonotone is spec.md §8 P6 adjacent: process
// offsets accumulate monotonically across remote_processes in
// first-contact order.
func TestProcessOffsetsMonotone(t *testing.T) {
	t.Parallel()
	cm := lineCmesh(t, 3, 1)
	lineScheme := scheme.Hypercube(eclass.Line)
	e0 := lineScheme.NewElement(1, 0)
	e1 := lineScheme.NewElement(1, 1)

	f := forest.NewStaticForest(
		cm, 1, false, false,
		[]tree.ID{1}, []eclass.EClass{eclass.Line},
		[][]scheme.Element{{e0, e1}},
		map[eclass.EClass]scheme.Scheme{eclass.Line: lineScheme},
		constOwner(map[tree.ID]int{0: 0, 2: 2}, 1),
		1, 3,
	)
	f.SetNeighborFixture(0, 0, 0, forest.FaceNeighborFixture{
		NeighborGlobalTree: 0, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 1)},
	})
	f.SetNeighborFixture(0, 1, 1, forest.FaceNeighborFixture{
		NeighborGlobalTree: 2, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 0)},
	})

	g, err := ghost.Build(context.Background(), f)
	require.NoError(t, err)
	defer g.Unref()

	offsets := g.ProcessOffsets()
	require.Len(t, offsets, 2)
	first := offsets[g.RemoteProcesses()[0]]
	second := offsets[g.RemoteProcesses()[1]]
	assert.Equal(t, 0, first.FirstGhostTreeIndex)
	assert.Equal(t, 0, first.FirstElementIndex)
	assert.Equal(t, 1, second.FirstGhostTreeIndex)
	assert.Equal(t, 1, second.FirstElementIndex)

	// cached: a second call must return the same map without
	// recomputation changing its contents.
	assert.Equal(t, offsets, g.ProcessOffsets())
}

// TestDebugJSON checks that the dump reports the ghost tree count and
// contacted remote ranks, sorted and deduplicated by the underlying
// containers.Set encoding.
func TestDebugJSON(t *testing.T) {
	t.Parallel()
	cm := lineCmesh(t, 3, 1)
	lineScheme := scheme.Hypercube(eclass.Line)
	e0 := lineScheme.NewElement(1, 0)
	e1 := lineScheme.NewElement(1, 1)

	f := forest.NewStaticForest(
		cm, 1, false, false,
		[]tree.ID{1}, []eclass.EClass{eclass.Line},
		[][]scheme.Element{{e0, e1}},
		map[eclass.EClass]scheme.Scheme{eclass.Line: lineScheme},
		constOwner(map[tree.ID]int{0: 0, 2: 2}, 1),
		1, 3,
	)
	f.SetNeighborFixture(0, 0, 0, forest.FaceNeighborFixture{
		NeighborGlobalTree: 0, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 1)},
	})
	f.SetNeighborFixture(0, 1, 1, forest.FaceNeighborFixture{
		NeighborGlobalTree: 2, NeighborEClass: eclass.Line, Children: []scheme.Element{lineScheme.NewElement(1, 0)},
	})

	g, err := ghost.Build(context.Background(), f)
	require.NoError(t, err)
	defer g.Unref()

	data, err := g.DebugJSON()
	require.NoError(t, err)

	var view struct {
		NumGhostTrees int
		GhostTreeIDs  []int64
		RemoteRanks   []int64
	}
	require.NoError(t, json.Unmarshal(data, &view))
	assert.Equal(t, 2, view.NumGhostTrees)
	assert.Equal(t, []int64{0, 2}, view.GhostTreeIDs)
	assert.Equal(t, []int64{0, 2}, view.RemoteRanks)
}
