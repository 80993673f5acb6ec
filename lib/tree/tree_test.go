// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package tree_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

func TestNewTreeAllBoundary(t *testing.T) {
	t.Parallel()
	tr := tree.NewTree(3, eclass.Quad)
	assert.Equal(t, tree.ID(3), tr.GlobalID)
	require.Len(t, tr.Faces, eclass.Quad.NumFaces())
	for _, s := range tr.Faces {
		assert.True(t, s.IsBoundary())
		assert.False(t, s.Valid())
	}
}

func TestConnectRoundTripsFaceAndOrientation(t *testing.T) {
	t.Parallel()
	tr := tree.NewTree(0, eclass.Quad)
	err := tr.Connect(1, tree.ID(7), eclass.Quad, 2, 3)
	require.NoError(t, err)

	slot := tr.Faces[1]
	assert.True(t, slot.Valid())
	assert.Equal(t, tree.ID(7), slot.NeighborTree)
	assert.Equal(t, eclass.Quad, slot.NeighborClass)

	face, orientation := slot.Face()
	assert.Equal(t, 2, face)
	assert.Equal(t, 3, orientation)
}

func TestConnectRejectsOutOfRangeFace(t *testing.T) {
	t.Parallel()
	tr := tree.NewTree(0, eclass.Quad)
	err := tr.Connect(99, tree.ID(1), eclass.Quad, 0, 0)
	assert.Error(t, err)
}

func TestConnectRejectsOversizedOrientation(t *testing.T) {
	t.Parallel()
	tr := tree.NewTree(0, eclass.Quad)
	err := tr.Connect(0, tree.ID(1), eclass.Quad, 0, 1<<6)
	assert.Error(t, err)
}

func TestFacePanicsOnUnsetSlot(t *testing.T) {
	t.Parallel()
	tr := tree.NewTree(0, eclass.Quad)
	assert.Panics(t, func() {
		tr.Faces[0].Face()
	})
}
