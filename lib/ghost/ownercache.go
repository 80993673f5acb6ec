// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

package ghost

import (
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/forest"
	"github.com/jackerschott/cmesh-go/lib/scheme"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// ownerKey is the memoization key for one find_owner call: Phase B
// asks the same (tree, element, eclass) triple once per half-face
// child, and siblings sharing a coarse face frequently resolve to the
// same remote rank, so a small cache avoids repeat owner lookups
// (spec.md §4.2 find_owner).
type ownerKey struct {
	globalTree tree.ID
	elemClass  eclass.EClass
	elem       string // scheme.Element content, which is the lookup key
}

// ownerCache memoizes forest.ElementFindOwner. The one-rank-per-scan
// access pattern is single-threaded, but the lock is cheap insurance
// if a caller ever shares a Ghost build across goroutines.
type ownerCache struct {
	mu       sync.Mutex
	inner    *lru.ARCCache
	forest   forest.Forest
	capacity int
}

func newOwnerCache(f forest.Forest, capacity int) *ownerCache {
	c, err := lru.NewARC(capacity)
	if err != nil {
		// Only returns an error for capacity <= 0.
		panic(err)
	}
	return &ownerCache{inner: c, forest: f, capacity: capacity}
}

func (c *ownerCache) findOwner(globalTree tree.ID, e scheme.Element, class eclass.EClass) (int, error) {
	key := ownerKey{globalTree: globalTree, elemClass: class, elem: string(e)}

	c.mu.Lock()
	if v, ok := c.inner.Get(key); ok {
		c.mu.Unlock()
		return v.(int), nil
	}
	c.mu.Unlock()

	rank, err := c.forest.ElementFindOwner(globalTree, e, class)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.inner.Add(key, rank)
	c.mu.Unlock()
	return rank, nil
}
