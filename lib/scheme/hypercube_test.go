// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package scheme_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/scheme"
)

func TestQuadLinearIDOrdering(t *testing.T) {
	t.Parallel()
	s := scheme.Hypercube(eclass.Quad)
	e00 := s.NewElement(1, 0, 0)
	e10 := s.NewElement(1, 1, 0)
	e01 := s.NewElement(1, 0, 1)
	e11 := s.NewElement(1, 1, 1)

	id00 := s.ElementLinearID(e00, 1)
	id10 := s.ElementLinearID(e10, 1)
	id01 := s.ElementLinearID(e01, 1)
	id11 := s.ElementLinearID(e11, 1)

	ids := map[uint64]bool{id00: true, id10: true, id01: true, id11: true}
	assert.Len(t, ids, 4, "all four children must have distinct linear ids")
	assert.Less(t, id00, id11)
}

func TestLinearIDAtCoarserLevel(t *testing.T) {
	t.Parallel()
	s := scheme.Hypercube(eclass.Quad)
	e := s.NewElement(2, 2, 3) // level-2 coords (2,3) = (0b10, 0b11)
	idAtOwnLevel := s.ElementLinearID(e, 2)
	idAtCoarse := s.ElementLinearID(e, 1)
	assert.NotEqual(t, idAtOwnLevel, idAtCoarse)
}

func TestElementSizeAndCopy(t *testing.T) {
	t.Parallel()
	s := scheme.Hypercube(eclass.Hex)
	require.Equal(t, 13, s.ElementSize()) // 1 + 4*3

	src := s.NewElement(1, 1, 0, 1)
	dst := make(scheme.Element, s.ElementSize())
	s.ElementCopy(dst, src)
	assert.Equal(t, src, dst)
}

func TestFaceChildrenCount(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 2, scheme.Hypercube(eclass.Quad).ElementNumFaceChildren(0))
	assert.Equal(t, 4, scheme.Hypercube(eclass.Hex).ElementNumFaceChildren(0))
	assert.Equal(t, 1, scheme.Hypercube(eclass.Line).ElementNumFaceChildren(0))
}
