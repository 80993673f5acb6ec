// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package scheme defines the fine-element Scheme capability consumed
// by the ghost builder (spec.md §6): one vtable per eclass, owned and
// supplied by the forest library. The fine-element scheme itself
// (linear ids, face children, element storage) is out of scope
// (spec.md §1); this package only defines the interface shape, plus a
// reference "hypercube" implementation for Line/Quad/Hex used to drive
// tests deterministically (spec.md §8 S6, the property tests).
package scheme

import "github.com/jackerschott/cmesh-go/lib/eclass"

// Element is an opaque fine-element value: scheme.ElementSize() bytes,
// with a layout only the owning Scheme understands (spec.md §6).
type Element []byte

// Scheme is the per-eclass vtable the ghost builder consumes.
// Implementations are expected to be stateless and safe to share
// across trees of the same eclass.
type Scheme interface {
	EClass() eclass.EClass

	// ElementSize is the byte length of one Element.
	ElementSize() int

	// ElementLevel returns e's refinement level.
	ElementLevel(e Element) int

	// ElementLinearID returns the deterministic linear ordering
	// index of e at the given level (spec.md glossary: "Linear
	// id").
	ElementLinearID(e Element, level int) uint64

	// ElementNumFaces returns how many faces e's class has.
	ElementNumFaces() int

	// ElementNumFaceChildren returns how many refined children of
	// the face-neighbor share face f at one level finer (the "H"
	// of spec.md §4.2 Phase B).
	ElementNumFaceChildren(face int) int

	// ElementCopy copies src's content into dst. Both must be
	// ElementSize() bytes.
	ElementCopy(dst, src Element)

	// ElementNew allocates count zero-valued elements.
	ElementNew(count int) []Element

	// ElementDestroy releases any out-of-band resources held by
	// elems. The reference scheme below needs no-op destruction
	// since Elements are plain byte slices, but the interface
	// exists for schemes that pool or refcount element storage.
	ElementDestroy(elems []Element)
}
