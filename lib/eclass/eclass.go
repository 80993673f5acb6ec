// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package eclass defines the fixed set of element classes a cmesh tree
// may be built from, and their static topological properties.
package eclass

import "fmt"

// EClass identifies the topological shape of a tree or fine element:
// point, line, triangle, quad, tetrahedron, hexahedron, prism, or
// pyramid.
type EClass int8

const (
	Vertex EClass = iota
	Line
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid

	// EClassLast is a sentinel value meaning "no class set".
	EClassLast
)

var names = [EClassLast + 1]string{
	Vertex:     "vertex",
	Line:       "line",
	Triangle:   "triangle",
	Quad:       "quad",
	Tet:        "tet",
	Hex:        "hex",
	Prism:      "prism",
	Pyramid:    "pyramid",
	EClassLast: "none",
}

func (c EClass) String() string {
	if c < 0 || c > EClassLast {
		return fmt.Sprintf("eclass(%d)", int8(c))
	}
	return names[c]
}

// dims[c] is the topological dimension of eclass c.
var dims = [EClassLast]int8{
	Vertex:   0,
	Line:     1,
	Triangle: 2,
	Quad:     2,
	Tet:      3,
	Hex:      3,
	Prism:    3,
	Pyramid:  3,
}

// Dimension returns the topological dimension of c (0..3). It panics
// if c is EClassLast or otherwise out of range; callers must not ask
// for the dimension of an unset eclass.
func (c EClass) Dimension() int {
	if c < Vertex || c >= EClassLast {
		panic(fmt.Errorf("eclass.Dimension: invalid eclass %v", c))
	}
	return int(dims[c])
}

// numFaces[c] is the number of (d-1)-dimensional faces bounding one
// cell of eclass c.
var numFaces = [EClassLast]int8{
	Vertex:   0,
	Line:     2,
	Triangle: 3,
	Quad:     4,
	Tet:      4,
	Hex:      6,
	Prism:    5,
	Pyramid:  5,
}

// NumFaces returns the number of faces of c.
func (c EClass) NumFaces() int {
	if c < Vertex || c >= EClassLast {
		panic(fmt.Errorf("eclass.NumFaces: invalid eclass %v", c))
	}
	return int(numFaces[c])
}

// faceEClass[c][f] is the eclass of face f of a cell of eclass c; used
// by join_faces to check that two faces being glued share the same
// face topology (spec.md §4.1 join_faces).
var faceEClass = map[EClass][]EClass{
	Vertex:   {},
	Line:     {Vertex, Vertex},
	Triangle: {Line, Line, Line},
	Quad:     {Line, Line, Line, Line},
	Tet:      {Triangle, Triangle, Triangle, Triangle},
	Hex:      {Quad, Quad, Quad, Quad, Quad, Quad},
	Prism:    {Triangle, Triangle, Quad, Quad, Quad},
	Pyramid:  {Quad, Triangle, Triangle, Triangle, Triangle},
}

// FaceEClass returns the eclass of face f of a cell of eclass c.
func (c EClass) FaceEClass(f int) (EClass, error) {
	faces, ok := faceEClass[c]
	if !ok || f < 0 || f >= len(faces) {
		return EClassLast, fmt.Errorf("eclass.FaceEClass: %v has no face %d", c, f)
	}
	return faces[f], nil
}

// NumTreesForHypercube is the number of trees of eclass c needed to
// tile the reference hypercube of c's dimension as a simplicial
// complex, e.g. 6 tetrahedra make up a cube (spec.md §8 S3).
var NumTreesForHypercube = map[EClass]int{
	Vertex:   1,
	Line:     1,
	Triangle: 2,
	Quad:     1,
	Tet:      6,
	Hex:      1,
	Prism:    2,
	Pyramid:  6,
}
