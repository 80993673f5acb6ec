// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package eclass_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/eclass"
)

func TestDimension(t *testing.T) {
	t.Parallel()
	cases := map[eclass.EClass]int{
		eclass.Vertex:   0,
		eclass.Line:     1,
		eclass.Triangle: 2,
		eclass.Quad:     2,
		eclass.Tet:      3,
		eclass.Hex:      3,
		eclass.Prism:    3,
		eclass.Pyramid:  3,
	}
	for c, want := range cases {
		assert.Equal(t, want, c.Dimension(), "eclass=%v", c)
	}
}

func TestNumFaces(t *testing.T) {
	t.Parallel()
	cases := map[eclass.EClass]int{
		eclass.Vertex:   0,
		eclass.Line:     2,
		eclass.Triangle: 3,
		eclass.Quad:     4,
		eclass.Tet:      4,
		eclass.Hex:      6,
		eclass.Prism:    5,
		eclass.Pyramid:  5,
	}
	for c, want := range cases {
		assert.Equal(t, want, c.NumFaces(), "eclass=%v", c)
	}
}

func TestHypercubeForTet(t *testing.T) {
	t.Parallel()
	require.Equal(t, 6, eclass.NumTreesForHypercube[eclass.Tet])
}

func TestFaceEClassMismatchIsDetectable(t *testing.T) {
	t.Parallel()
	tf, err := eclass.Triangle.FaceEClass(0)
	require.NoError(t, err)
	require.Equal(t, eclass.Line, tf)

	qf, err := eclass.Quad.FaceEClass(0)
	require.NoError(t, err)
	hf, err := eclass.Hex.FaceEClass(0)
	require.NoError(t, err)
	require.NotEqual(t, tf, hf)       // a Line face never matches a Quad face
	require.Equal(t, eclass.Line, qf) // triangle and quad faces are both Lines
	_, err = eclass.Quad.FaceEClass(10)
	require.Error(t, err)
}

func TestDimensionPanicsOnUnset(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { eclass.EClassLast.Dimension() })
}
