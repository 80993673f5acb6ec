// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package comm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackerschott/cmesh-go/lib/comm"
	"github.com/jackerschott/cmesh-go/lib/mesherr"
)

func TestWorldIsSingleRank(t *testing.T) {
	t.Parallel()
	rank, size, err := comm.RankSize(comm.World)
	require.NoError(t, err)
	assert.Equal(t, 0, rank)
	assert.Equal(t, 1, size)
}

func TestSimCommReportsScriptedRankAndSize(t *testing.T) {
	t.Parallel()
	c := comm.NewSimComm(2, 5)
	rank, size, err := comm.RankSize(c)
	require.NoError(t, err)
	assert.Equal(t, 2, rank)
	assert.Equal(t, 5, size)
}

func TestSimCommDupPreservesIdentity(t *testing.T) {
	t.Parallel()
	c := comm.NewSimComm(1, 3)
	dup, err := c.Dup()
	require.NoError(t, err)
	rank, size, err := comm.RankSize(dup)
	require.NoError(t, err)
	assert.Equal(t, 1, rank)
	assert.Equal(t, 3, size)
	assert.NoError(t, dup.Free())
}

func TestNewSimCommPanicsOnInvalidRank(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { comm.NewSimComm(3, 3) })
	assert.Panics(t, func() { comm.NewSimComm(-1, 3) })
	assert.Panics(t, func() { comm.NewSimComm(0, 0) })
}

func TestRankSizeWrapsCommunicatorError(t *testing.T) {
	t.Parallel()
	_, _, err := comm.RankSize(failingComm{})
	assert.ErrorIs(t, err, mesherr.CommunicatorError)
}

type failingComm struct{}

func (failingComm) Dup() (comm.Communicator, error) { return failingComm{}, nil }
func (failingComm) Free() error                      { return nil }
func (failingComm) Rank() (int, error)               { return 0, assert.AnError }
func (failingComm) Size() (int, error)               { return 0, nil }
