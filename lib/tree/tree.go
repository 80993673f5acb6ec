// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package tree holds the per-tree topological record and its
// face-neighbor slots (spec.md §3), including the packed
// tree-to-face byte encoding that spec.md §9 calls out as an external
// contract whose bit layout must be preserved: low bits are the
// neighbor's face index, high bits are the orientation.
package tree

import (
	"fmt"

	"github.com/jackerschott/cmesh-go/lib/containers"
	"github.com/jackerschott/cmesh-go/lib/eclass"
)

// ID is a tree identifier: a global id in [0, num_trees), or a local
// id in [0, num_local_trees) depending on context (spec.md §3).
type ID int64

// NoTree is the "boundary, no neighbor" sentinel for a face slot's
// neighbor id.
const NoTree ID = -1

func (id ID) Native() containers.NativeOrdered[ID] {
	return containers.NativeOrdered[ID]{Val: id}
}

// faceIndexBits is how many low bits of the packed byte hold the
// neighbor's face index; a face count never exceeds 6 (Hex), so 3
// bits suffice, leaving 5 bits for orientation.
const faceIndexBits = 3

// packFace encodes a neighbor face index and orientation into a
// single byte, low bits = face index, high bits = orientation, per
// spec.md §9.
func packFace(neighborFace, orientation int) (int8, error) {
	if neighborFace < 0 || neighborFace >= (1<<faceIndexBits) {
		return 0, fmt.Errorf("tree: face index %d does not fit in %d bits", neighborFace, faceIndexBits)
	}
	if orientation < 0 || orientation >= (1<<(8-faceIndexBits)) {
		return 0, fmt.Errorf("tree: orientation %d does not fit in %d bits", orientation, 8-faceIndexBits)
	}
	return int8(neighborFace | (orientation << faceIndexBits)), nil
}

// unpackFace is the inverse of packFace.
func unpackFace(b int8) (neighborFace, orientation int) {
	u := uint8(b)
	return int(u & ((1 << faceIndexBits) - 1)), int(u >> faceIndexBits)
}

// FaceNeighborSlot is one entry in a Tree's face-neighbor array. A
// slot is "valid" (spec.md §3) iff NeighborTree, NeighborClass, and
// the packed face byte are all set. The packed byte is an Optional;
// NeighborTree and NeighborClass mark "unset" with the NoTree and
// EClassLast sentinels.
type FaceNeighborSlot struct {
	NeighborTree  ID // NoTree if this slot is a domain boundary.
	NeighborClass eclass.EClass
	packed        containers.Optional[int8]
}

// NewBoundarySlot returns an unconnected, boundary face slot.
func NewBoundarySlot() FaceNeighborSlot {
	return FaceNeighborSlot{NeighborTree: NoTree, NeighborClass: eclass.EClassLast}
}

// IsBoundary reports whether the slot has no neighbor.
func (s FaceNeighborSlot) IsBoundary() bool {
	return s.NeighborTree == NoTree
}

// Valid reports whether all three fields required by spec.md §3 are
// set: a non-boundary neighbor tree, a neighbor eclass, and a packed
// face byte.
func (s FaceNeighborSlot) Valid() bool {
	return !s.IsBoundary() && s.NeighborClass != eclass.EClassLast && s.packed.OK
}

// Face returns the neighbor's face index and the relative
// orientation; it panics if the slot is not Valid.
func (s FaceNeighborSlot) Face() (neighborFace, orientation int) {
	if !s.packed.OK {
		panic("tree.FaceNeighborSlot.Face: slot has no packed face byte")
	}
	return unpackFace(s.packed.Val)
}

// connect fills in a slot to point at (neighborTree, neighborClass,
// neighborFace, orientation).
func (s *FaceNeighborSlot) connect(neighborTree ID, neighborClass eclass.EClass, neighborFace, orientation int) error {
	packed, err := packFace(neighborFace, orientation)
	if err != nil {
		return err
	}
	s.NeighborTree = neighborTree
	s.NeighborClass = neighborClass
	s.packed = containers.Optional[int8]{OK: true, Val: packed}
	return nil
}

// Tree is one coarse topological cell (spec.md §3): a global id, its
// eclass, and one face-neighbor slot per face of that eclass.
type Tree struct {
	GlobalID ID
	EClass   eclass.EClass
	Faces    []FaceNeighborSlot
}

// NewTree allocates a Tree of the given eclass with all faces set to
// the boundary sentinel, per spec.md §4.1 set_tree.
func NewTree(id ID, c eclass.EClass) Tree {
	faces := make([]FaceNeighborSlot, c.NumFaces())
	for i := range faces {
		faces[i] = NewBoundarySlot()
	}
	return Tree{GlobalID: id, EClass: c, Faces: faces}
}

// Connect joins face f1 of tree t1 to face f2 of tree t2, matching
// spec.md §4.1 join_faces's "local side is updated" contract: it only
// mutates t1 (the caller is responsible for calling Connect on both
// sides when both trees are local, per cmesh.JoinFaces).
func (t1 *Tree) Connect(f1 int, t2 ID, t2Class eclass.EClass, f2, orientation int) error {
	if f1 < 0 || f1 >= len(t1.Faces) {
		return fmt.Errorf("tree.Connect: tree %d has no face %d", t1.GlobalID, f1)
	}
	return t1.Faces[f1].connect(t2, t2Class, f2, orientation)
}
