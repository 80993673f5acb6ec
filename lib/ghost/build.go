// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package ghost

import (
	"context"
	"fmt"
	"time"

	"github.com/datawire/dlib/dlog"

	"github.com/jackerschott/cmesh-go/lib/containers"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/forest"
	"github.com/jackerschott/cmesh-go/lib/mesherr"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/textui"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// scanStats is the Phase B progress snapshot reported through
// textui.Progress: how many of this rank's local trees have been
// scanned, and how many remote shipments have been discovered so far.
type scanStats struct {
	TreesDone  int
	TreesTotal int
	Remotes    int
}

func (s scanStats) String() string {
	return fmt.Sprintf("ghost scan: trees %v, remotes found %v",
		textui.Portion[int]{N: s.TreesDone, D: s.TreesTotal},
		textui.Humanized(s.Remotes))
}

// bufferPool recycles the outer scratch slice Phase B grows to hold H
// half-face neighbor elements per face; it is shared across builds
// since it is stateless (spec.md §4.2 "grow a scratch buffer... destroy
// old contents on regrow").
var bufferPool containers.SlicePool[scheme.Element]

// buildGhostTreeSkeleton runs Phase A of spec.md §4.2: seed the ghost
// tree set from the shared first/last local tree and every local
// tree's non-local coarse face neighbors, then sort and index it.
func buildGhostTreeSkeleton(f forest.Forest) ([]GhostTree, map[tree.ID]int, error) {
	cm := f.Cmesh()
	firstTree, err := cm.FirstTreeID()
	if err != nil {
		return nil, nil, err
	}
	numLocal, err := cm.NumLocalTrees()
	if err != nil {
		return nil, nil, err
	}
	lastTreeExclusive := firstTree + tree.ID(numLocal)

	isForestLocal := func(id tree.ID) bool {
		return id >= firstTree && id < lastTreeExclusive
	}

	var seed containers.SortedMap[containers.NativeOrdered[tree.ID], eclass.EClass]
	// insert seeds id into the ghost tree set via the containers.Map
	// capability (containers.LoadOrElse), so a tree discovered twice
	// under two different eclasses - an inconsistent cmesh - is caught
	// here instead of silently keeping whichever class happened to be
	// inserted first.
	insert := func(id tree.ID, class eclass.EClass) error {
		key := containers.NativeOrdered[tree.ID]{Val: id}
		got := containers.LoadOrElse[containers.NativeOrdered[tree.ID], eclass.EClass](&seed, key, func(containers.NativeOrdered[tree.ID]) eclass.EClass {
			return class
		})
		if got != class {
			return fmt.Errorf("ghost: phase A: tree %d seeded with conflicting eclasses %v and %v: %w", id, got, class, mesherr.ContractViolation)
		}
		return nil
	}

	if numLocal > 0 {
		if f.FirstTreeShared() {
			if err := insert(firstTree, f.TreeClass(0)); err != nil {
				return nil, nil, err
			}
		}
		if f.LastTreeShared() {
			if err := insert(firstTree+tree.ID(numLocal)-1, f.TreeClass(numLocal-1)); err != nil {
				return nil, nil, err
			}
		}
	}

	for itree := int64(0); itree < numLocal; itree++ {
		globalID, err := ghostGlobalID(f, itree)
		if err != nil {
			return nil, nil, err
		}
		t, err := cm.Tree(globalID)
		if err != nil {
			return nil, nil, fmt.Errorf("ghost: phase A: %w", err)
		}
		for _, slot := range t.Faces {
			if slot.IsBoundary() || isForestLocal(slot.NeighborTree) {
				continue
			}
			if err := insert(slot.NeighborTree, slot.NeighborClass); err != nil {
				return nil, nil, err
			}
		}
	}

	ghostTrees := make([]GhostTree, 0, seed.Len())
	seed.Range(func(id containers.NativeOrdered[tree.ID], class eclass.EClass) bool {
		ghostTrees = append(ghostTrees, GhostTree{GlobalID: id.Val, EClass: class})
		return true
	})

	index := make(map[tree.ID]int, len(ghostTrees))
	for i, gt := range ghostTrees {
		index[gt.GlobalID] = i
	}
	return ghostTrees, index, nil
}

// scanLocalElements runs Phase B of spec.md §4.2: for every local
// element's faces, compute the half-face neighbors, resolve their
// owner, and record this element in the owner's RemoteBundle whenever
// the owner is not self.
func scanLocalElements(ctx context.Context, f forest.Forest) (*remoteStore, error) {
	cm := f.Cmesh()
	numLocal, err := cm.NumLocalTrees()
	if err != nil {
		return nil, err
	}
	selfRank := f.Rank()

	owners := newOwnerCache(f, ownerCacheCapacity)
	store := newRemoteStore()

	progress := textui.NewProgress[scanStats](ctx, dlog.LogLevelDebug, 2*time.Second)
	defer progress.Done()
	remotesFound := 0

	var (
		scratch      []scheme.Element
		scratchClass = eclass.EClassLast
		scratchH     int
	)
	destroyScratch := func() {
		if scratch == nil {
			return
		}
		f.EClassScheme(scratchClass).ElementDestroy(scratch)
		bufferPool.Put(scratch[:cap(scratch)])
		scratch = nil
	}
	defer destroyScratch()

	for itree := int64(0); itree < numLocal; itree++ {
		globalID, err := ghostGlobalID(f, itree)
		if err != nil {
			return nil, err
		}
		localClass := f.TreeClass(itree)
		localScheme := f.EClassScheme(localClass)

		numElems := f.TreeElementCount(itree)
		for ei := 0; ei < numElems; ei++ {
			e := f.TreeElement(itree, ei)
			numFaces := localScheme.ElementNumFaces()
			for face := 0; face < numFaces; face++ {
				neighClass := f.ElementNeighborEClass(itree, e, face)
				if neighClass == eclass.EClassLast {
					continue // domain boundary
				}
				neighScheme := f.EClassScheme(neighClass)
				h := neighScheme.ElementNumFaceChildren(face)
				if h == 0 {
					continue // no refined children: treat as boundary
				}

				// Regrow the scratch buffer whenever the
				// neighbor eclass or child count changes, per
				// spec.md §4.2 ("destroy old contents on
				// regrow"); same (class, H) reuses it as-is.
				if scratchClass != neighClass || scratchH != h {
					destroyScratch()
					scratch = bufferPool.Get(h)
					copy(scratch, neighScheme.ElementNew(h))
					scratchClass = neighClass
					scratchH = h
				}
				half := scratch[:h]

				neighborGlobalTree := f.ElementHalfFaceNeighbors(itree, e, face, half)
				if neighborGlobalTree < 0 {
					continue // domain boundary
				}

				for c := 0; c < h; c++ {
					owner, err := owners.findOwner(neighborGlobalTree, half[c], neighClass)
					if err != nil {
						return nil, fmt.Errorf("ghost: phase B: tree %d elem %d face %d: %w", globalID, ei, face, err)
					}
					if owner == selfRank {
						continue
					}
					store.addRemote(owner, globalID, localClass, localScheme, e)
					remotesFound++
				}
			}
		}
		progress.Set(scanStats{TreesDone: int(itree) + 1, TreesTotal: int(numLocal), Remotes: remotesFound})
	}
	return store, nil
}
