// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package ghost

import (
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// RemoteTree is one coarse tree's worth of locally owned elements
// that a remote rank needs, in ascending linear element id within the
// tree (spec.md §3 RemoteTree).
type RemoteTree struct {
	GlobalID tree.ID
	EClass   eclass.EClass
	Elements []scheme.Element
}

// RemoteBundle is one remote rank's full shipment: its RemoteTrees in
// ascending local-tree order (spec.md §3 RemoteBundle).
type RemoteBundle struct {
	Rank  int
	Trees []RemoteTree
}

// remoteStore holds the per-rank RemoteBundles the ghost builder
// populates in Phase B, plus the insertion-ordered list of ranks that
// spec.md §4.2's add_remote appends to on first contact.
type remoteStore struct {
	byRank    map[int]*RemoteBundle
	processes []int // insertion order, i.e. spec.md's remote_processes
}

func newRemoteStore() *remoteStore {
	return &remoteStore{byRank: map[int]*RemoteBundle{}}
}

// addRemote implements spec.md §4.2's add_remote: it looks up or
// creates rank's bundle, reuses or appends a RemoteTree for ltree, and
// deduplicates against the last element already recorded there by
// comparing (level, linear id at level) — which is sufficient because
// the outer Phase B scan visits elements of one tree in ascending
// linear order, so duplicate owners for the same element arrive on
// consecutive calls.
func (s *remoteStore) addRemote(rank int, globalTree tree.ID, ltreeClass eclass.EClass, sch scheme.Scheme, elem scheme.Element) {
	bundle, ok := s.byRank[rank]
	if !ok {
		bundle = &RemoteBundle{Rank: rank}
		s.byRank[rank] = bundle
		s.processes = append(s.processes, rank)
	}

	n := len(bundle.Trees)
	if n == 0 || bundle.Trees[n-1].GlobalID != globalTree {
		bundle.Trees = append(bundle.Trees, RemoteTree{GlobalID: globalTree, EClass: ltreeClass})
		n++
	}
	rt := &bundle.Trees[n-1]

	level := sch.ElementLevel(elem)
	linID := sch.ElementLinearID(elem, level)
	if m := len(rt.Elements); m > 0 {
		lastLevel := sch.ElementLevel(rt.Elements[m-1])
		lastLinID := sch.ElementLinearID(rt.Elements[m-1], lastLevel)
		if lastLevel == level && lastLinID == linID {
			return
		}
	}
	cp := make(scheme.Element, len(elem))
	sch.ElementCopy(cp, elem)
	rt.Elements = append(rt.Elements, cp)
}
