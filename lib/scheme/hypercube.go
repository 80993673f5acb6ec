// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package scheme

import (
	"encoding/binary"
	"fmt"

	"github.com/jackerschott/cmesh-go/lib/eclass"
)

// HypercubeScheme is a reference Scheme for Vertex, Line, Quad, or Hex:
// elements are identified by a refinement level and one coordinate
// per axis in [0, 2^level), and the linear id is the Morton (Z-order)
// interleaving of those coordinates — the standard ordering a
// hypercube-refinement scheme uses so that a uniform refinement's
// children are contiguous in linear-id order (spec.md §4.1
// UniformBounds's ordering assumption, and glossary "Linear id").
//
// This is the "fine-element scheme" spec.md §1 calls an external
// collaborator; it exists here only so the ghost-builder tests in
// lib/ghost have a concrete, deterministic Scheme to drive.
type HypercubeScheme struct {
	class eclass.EClass
	dim   int
}

// Hypercube returns the reference scheme for eclass c.
func Hypercube(c eclass.EClass) HypercubeScheme {
	return HypercubeScheme{class: c, dim: c.Dimension()}
}

var _ Scheme = HypercubeScheme{}

// element layout: byte 0 = level; then dim uint32s (big-endian), one
// coordinate per axis, each in [0, 2^level).
func (s HypercubeScheme) ElementSize() int { return 1 + 4*s.dim }

func (s HypercubeScheme) EClass() eclass.EClass { return s.class }

func (s HypercubeScheme) ElementLevel(e Element) int {
	return int(e[0])
}

func (s HypercubeScheme) coord(e Element, axis int) uint32 {
	return binary.BigEndian.Uint32(e[1+4*axis : 1+4*axis+4])
}

func (s HypercubeScheme) setCoord(e Element, axis int, v uint32) {
	binary.BigEndian.PutUint32(e[1+4*axis:1+4*axis+4], v)
}

// ElementLinearID interleaves the (possibly level-truncated)
// coordinate bits into a single Morton index.
func (s HypercubeScheme) ElementLinearID(e Element, level int) uint64 {
	native := s.ElementLevel(e)
	if level > native {
		panic(fmt.Errorf("scheme.Hypercube: ElementLinearID: requested level %d is finer than element's level %d", level, native))
	}
	if s.dim == 0 {
		return 0
	}
	shift := uint(native - level)
	var id uint64
	for bit := 0; bit < level; bit++ {
		for axis := 0; axis < s.dim; axis++ {
			c := s.coord(e, axis) >> shift
			b := (c >> uint(bit)) & 1
			id |= uint64(b) << uint(bit*s.dim+axis)
		}
	}
	return id
}

func (s HypercubeScheme) ElementNumFaces() int { return s.class.NumFaces() }

// ElementNumFaceChildren returns how many refined children of a
// face-neighbor share a given face at one level finer: a face is
// (dim-1)-dimensional, so refining it once yields 2^(dim-1) pieces.
func (s HypercubeScheme) ElementNumFaceChildren(face int) int {
	if s.dim <= 1 {
		return 1
	}
	return 1 << uint(s.dim-1)
}

func (s HypercubeScheme) ElementCopy(dst, src Element) {
	copy(dst, src)
}

func (s HypercubeScheme) ElementNew(count int) []Element {
	ret := make([]Element, count)
	for i := range ret {
		ret[i] = make(Element, s.ElementSize())
	}
	return ret
}

func (s HypercubeScheme) ElementDestroy(elems []Element) {}

// NewElement builds an element at the given level with the given
// per-axis coordinates, for use by tests and by callers constructing
// a StaticForest.
func (s HypercubeScheme) NewElement(level int, coords ...uint32) Element {
	if len(coords) != s.dim {
		panic(fmt.Errorf("scheme.Hypercube: NewElement: want %d coordinates, got %d", s.dim, len(coords)))
	}
	e := make(Element, s.ElementSize())
	e[0] = byte(level)
	for axis, c := range coords {
		s.setCoord(e, axis, c)
	}
	return e
}
