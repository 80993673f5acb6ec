// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package forest

import (
	"fmt"

	"github.com/jackerschott/cmesh-go/lib/cmesh"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// FaceNeighborFixture is a scripted answer to
// Forest.ElementHalfFaceNeighbors for one (tree, element, face): since
// real face-neighbor geometry belongs to the out-of-scope forest
// iterator (spec.md §1), tests wire up exactly the neighbors Phase B
// needs to see.
type FaceNeighborFixture struct {
	NeighborGlobalTree tree.ID
	NeighborEClass     eclass.EClass
	Children           []scheme.Element
}

type faceKey struct {
	itree   int64
	elemIdx int
	face    int
}

// StaticForest is a fully in-memory Forest double. It materializes a
// fixed set of local trees and their fine elements, a scripted
// half-face-neighbor table, and a scripted owner function, so that
// ghost-builder tests (spec.md §8 S6 and the property tests) are
// deterministic without a real adaptive-refinement forest library.
type StaticForest struct {
	cm               *cmesh.Cmesh
	firstLocalTree   tree.ID
	firstShared      bool
	lastShared       bool
	treeGlobalIDs    []tree.ID
	treeClasses      []eclass.EClass
	treeElements     [][]scheme.Element
	schemes          map[eclass.EClass]scheme.Scheme
	neighborFixtures map[faceKey]FaceNeighborFixture
	findOwner        func(globalTree tree.ID, e scheme.Element, c eclass.EClass) (int, error)
	rank, size       int
}

// NewStaticForest builds a StaticForest over cm's local trees
// (firstLocalTree..firstLocalTree+len(treeGlobalIDs)) with the given
// per-tree eclass/elements, owner function, and this rank's
// rank/size. Use SetNeighborFixture afterward to script Phase B face
// neighbors.
func NewStaticForest(
	cm *cmesh.Cmesh,
	firstLocalTree tree.ID,
	firstShared, lastShared bool,
	treeGlobalIDs []tree.ID,
	treeClasses []eclass.EClass,
	treeElements [][]scheme.Element,
	schemes map[eclass.EClass]scheme.Scheme,
	findOwner func(globalTree tree.ID, e scheme.Element, c eclass.EClass) (int, error),
	rank, size int,
) *StaticForest {
	if len(treeGlobalIDs) != len(treeClasses) || len(treeGlobalIDs) != len(treeElements) {
		panic("forest.NewStaticForest: tree slices must be the same length")
	}
	return &StaticForest{
		cm:               cm,
		firstLocalTree:   firstLocalTree,
		firstShared:      firstShared,
		lastShared:       lastShared,
		treeGlobalIDs:    treeGlobalIDs,
		treeClasses:      treeClasses,
		treeElements:     treeElements,
		schemes:          schemes,
		neighborFixtures: map[faceKey]FaceNeighborFixture{},
		findOwner:        findOwner,
		rank:             rank,
		size:             size,
	}
}

// SetNeighborFixture scripts the answer to ElementHalfFaceNeighbors
// for one (forest-local tree, element index, face).
func (f *StaticForest) SetNeighborFixture(itree int64, elemIdx, face int, fx FaceNeighborFixture) {
	f.neighborFixtures[faceKey{itree, elemIdx, face}] = fx
}

func (f *StaticForest) Cmesh() *cmesh.Cmesh       { return f.cm }
func (f *StaticForest) FirstLocalTreeID() tree.ID { return f.firstLocalTree }
func (f *StaticForest) NumLocalTrees() int64      { return int64(len(f.treeGlobalIDs)) }
func (f *StaticForest) FirstTreeShared() bool     { return f.firstShared }
func (f *StaticForest) LastTreeShared() bool      { return f.lastShared }
func (f *StaticForest) Rank() int                 { return f.rank }
func (f *StaticForest) Size() int                 { return f.size }

func (f *StaticForest) TreeClass(itree int64) eclass.EClass {
	return f.treeClasses[itree]
}

func (f *StaticForest) TreeElementCount(itree int64) int {
	return len(f.treeElements[itree])
}

func (f *StaticForest) TreeElement(itree int64, i int) scheme.Element {
	return f.treeElements[itree][i]
}

func (f *StaticForest) EClassScheme(c eclass.EClass) scheme.Scheme {
	s, ok := f.schemes[c]
	if !ok {
		panic(fmt.Errorf("forest.StaticForest: no scheme registered for %v", c))
	}
	return s
}

// GlobalTreeID returns the global id of forest-local tree itree. It is
// not part of the Forest interface; the ghost builder derives global
// ids from the cmesh's first tree id instead.
func (f *StaticForest) GlobalTreeID(itree int64) tree.ID {
	return f.treeGlobalIDs[itree]
}

func (f *StaticForest) CmeshLtreeidToLtreeid(cmeshLocalID int64) int64 {
	// StaticForest refines exactly the trees the cmesh owns
	// locally, 1:1, which is the common (non-mixed) case this
	// core targets.
	if cmeshLocalID < 0 || cmeshLocalID >= int64(len(f.treeGlobalIDs)) {
		return -1
	}
	return cmeshLocalID
}

func (f *StaticForest) ElementNeighborEClass(itree int64, e scheme.Element, face int) eclass.EClass {
	fx, ok := f.neighborFixtures[faceKey{itree, f.elemIndex(itree, e), face}]
	if !ok {
		return eclass.EClassLast
	}
	return fx.NeighborEClass
}

func (f *StaticForest) ElementHalfFaceNeighbors(itree int64, e scheme.Element, face int, out []scheme.Element) tree.ID {
	fx, ok := f.neighborFixtures[faceKey{itree, f.elemIndex(itree, e), face}]
	if !ok {
		return tree.NoTree
	}
	for i, c := range fx.Children {
		if i >= len(out) {
			break
		}
		copy(out[i], c)
	}
	return fx.NeighborGlobalTree
}

func (f *StaticForest) ElementFindOwner(globalTree tree.ID, e scheme.Element, c eclass.EClass) (int, error) {
	return f.findOwner(globalTree, e, c)
}

func (f *StaticForest) elemIndex(itree int64, e scheme.Element) int {
	for i, elem := range f.treeElements[itree] {
		if string(elem) == string(e) {
			return i
		}
	}
	panic(fmt.Errorf("forest.StaticForest: element not found in tree %d", itree))
}

var _ Forest = (*StaticForest)(nil)
