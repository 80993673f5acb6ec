// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package forest defines the Forest capability the ghost builder
// consumes (spec.md §6): the partitioned, refined collection of fine
// elements attached to a committed Cmesh. The forest iterator,
// point-location, and owner-finder query are themselves out of scope
// (spec.md §1) — this package only states the shape the ghost builder
// needs, plus an in-memory StaticForest double (lib/forest/static.go)
// sufficient to drive ghost-builder tests deterministically.
package forest

import (
	"github.com/jackerschott/cmesh-go/lib/cmesh"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// Forest is the capability surface the ghost builder reads (spec.md
// §6 "Forest capability (consumed)"). Tree indices (itree) are
// forest-local indices into this rank's owned coarse trees, in the
// same order as the underlying Cmesh's local trees.
type Forest interface {
	Cmesh() *cmesh.Cmesh
	FirstLocalTreeID() tree.ID
	NumLocalTrees() int64

	// FirstTreeShared/LastTreeShared report whether this rank's
	// first/last locally owned coarse tree is also owned (in
	// part) by another rank — the seed set for Ghost Phase A.
	FirstTreeShared() bool
	LastTreeShared() bool

	TreeClass(itree int64) eclass.EClass
	TreeElementCount(itree int64) int
	TreeElement(itree int64, i int) scheme.Element
	EClassScheme(c eclass.EClass) scheme.Scheme

	// CmeshLtreeidToLtreeid maps a cmesh-local tree id to this
	// forest's local tree id, or -1 if that cmesh tree is not
	// locally present in this forest.
	CmeshLtreeidToLtreeid(cmeshLocalID int64) int64

	// ElementNeighborEClass returns the eclass of whatever coarse
	// or fine neighbor touches e across face.
	ElementNeighborEClass(itree int64, e scheme.Element, face int) eclass.EClass

	// ElementHalfFaceNeighbors fills out (which must have capacity
	// for H = scheme.ElementNumFaceChildren(face) entries) with the
	// H half-size neighbor elements across face, and returns the
	// neighbor's coarse tree global id, or tree.NoTree if face is a
	// domain boundary (spec.md §4.2 Phase B).
	ElementHalfFaceNeighbors(itree int64, e scheme.Element, face int, out []scheme.Element) (neighborGlobalTree tree.ID)

	// ElementFindOwner resolves the owning rank of an element in a
	// (possibly non-local) global tree; this is the out-of-scope
	// "owner-finder query" spec.md §1 names.
	ElementFindOwner(globalTree tree.ID, e scheme.Element, c eclass.EClass) (rank int, err error)

	Rank() int
	Size() int
}
