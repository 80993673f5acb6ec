// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package comm defines the Communicator capability (spec.md §6): an
// opaque process-group handle with Dup/Free/Rank/Size. The core never
// sends or receives a message on it; it only reads rank/size at commit
// and optionally duplicates the handle so the cmesh owns an
// independent one whose lifetime it controls (spec.md §5).
package comm

import (
	"fmt"

	"github.com/jackerschott/cmesh-go/lib/mesherr"
)

// Communicator is a process-group handle. Implementations are
// expected to be cheap to pass by value or store as an interface.
// A new cmesh has no communicator until one (for example World) is
// passed to its SetMPIComm.
type Communicator interface {
	// Dup returns an independent handle with the same membership.
	// The caller owns the returned handle and must Free it.
	Dup() (Communicator, error)

	// Free releases a handle obtained from Dup. Freeing the
	// default/borrowed handle passed in by a caller is not this
	// package's concern; only cmesh-owned duplicates are freed.
	Free() error

	// Rank returns this process's rank in [0, Size()).
	Rank() (int, error)

	// Size returns the number of ranks in the group.
	Size() (int, error)
}

// World is the process-wide default communicator: a single-rank group
// of one, suitable for replicated (non-MPI) use and for tests that
// don't care about multi-rank behavior.
var World Communicator = worldComm{}

type worldComm struct{}

func (worldComm) Dup() (Communicator, error) { return worldComm{}, nil }
func (worldComm) Free() error                { return nil }
func (worldComm) Rank() (int, error)         { return 0, nil }
func (worldComm) Size() (int, error)         { return 1, nil }

// SimComm is an in-process communicator double that lets one test
// process simulate a single rank out of a larger `size`, without
// needing a real MPI binding. It is the "simulation test" substitute
// spec.md §9 calls for when it says to "keep transport behind an
// interface so simulation tests can substitute a synchronous
// in-memory exchange."
type SimComm struct {
	rank, size int
}

// NewSimComm returns a Communicator reporting the given rank and size.
// It panics (a contract violation — this is test scaffolding, not
// production config) if size <= 0 or rank is out of [0, size).
func NewSimComm(rank, size int) SimComm {
	if size <= 0 || rank < 0 || rank >= size {
		panic(fmt.Errorf("comm.NewSimComm: invalid rank=%d size=%d", rank, size))
	}
	return SimComm{rank: rank, size: size}
}

func (c SimComm) Dup() (Communicator, error) { return c, nil }
func (c SimComm) Free() error                { return nil }
func (c SimComm) Rank() (int, error)         { return c.rank, nil }
func (c SimComm) Size() (int, error)         { return c.size, nil }

// RankSize is a convenience that calls Rank and Size and wraps any
// error as mesherr.CommunicatorError.
func RankSize(c Communicator) (rank, size int, err error) {
	rank, err = c.Rank()
	if err != nil {
		return 0, 0, fmt.Errorf("comm: reading rank: %w: %v", mesherr.CommunicatorError, err)
	}
	size, err = c.Size()
	if err != nil {
		return 0, 0, fmt.Errorf("comm: reading size: %w: %v", mesherr.CommunicatorError, err)
	}
	return rank, size, nil
}
