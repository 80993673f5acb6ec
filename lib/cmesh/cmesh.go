// Copyright (C) 2022  Luke Shumaker <lukeshu@lukeshu.com>
//
// SPDX-License-Identifier: GPL-2.0-or-later

// Package cmesh implements the coarse-mesh builder / committed cmesh
// state machine from spec.md §4.1: a staged (Configuring → Committed)
// construction of a distributed collection of trees glued face-to-face,
// plus the uniform-partition-bounds query used to hand a forest
// library fair, adjoining per-rank child ranges.
package cmesh

import (
	"bytes"
	"context"
	"fmt"
	"math/bits"

	"git.lukeshu.com/go/lowmemjson"
	"github.com/datawire/dlib/derror"
	"github.com/datawire/dlib/dlog"

	"github.com/jackerschott/cmesh-go/lib/comm"
	"github.com/jackerschott/cmesh-go/lib/containers"
	"github.com/jackerschott/cmesh-go/lib/eclass"
	"github.com/jackerschott/cmesh-go/lib/mesherr"
	"github.com/jackerschott/cmesh-go/lib/refcount"
	"github.com/jackerschott/cmesh-go/lib/tree"
)

// State is a Cmesh's position in the lifecycle state machine of
// spec.md §4.1.
type State int

const (
	Configuring State = iota
	Committed
)

func (s State) String() string {
	if s == Configuring {
		return "configuring"
	}
	return "committed"
}

// Cmesh is the staged-commit builder / committed topology store
// described in spec.md §3-§4.1. The zero value is not usable; create
// one with New.
type Cmesh struct {
	refs *refcount.Counter

	state State

	comm         comm.Communicator
	doDup        bool
	commSet      bool
	commIsWorld  bool // whether the currently-set comm is the trivial default
	rank, size   int  // -1 while Configuring

	dimension int // -1 until the first tree is inserted

	partitioned        bool
	partitionSetupDone bool
	numTrees           int64 // global
	numLocalTrees      int64
	firstTree          tree.ID
	numGhosts          int64
	treeOffsets        []int64 // optional, length size+1

	perEClassCount [eclass.EClassLast]int64
	trees          []tree.Tree // local trees, indexed by (globalID - firstTree)
	treesSet       []bool      // which slots of trees[] have been SetTree'd
}

// New allocates a Cmesh in the Configuring state with a refcount of 1
// and no communicator set yet (spec.md §4.1: Uninitialized → init →
// Configuring).
func New() *Cmesh {
	return &Cmesh{
		refs:      refcount.New(),
		state:     Configuring,
		rank:      -1,
		size:      -1,
		dimension: -1,
	}
}

// Ref increments the Cmesh's refcount (spec.md §5).
func (c *Cmesh) Ref() { c.refs.Ref() }

// Unref decrements the Cmesh's refcount; at zero it frees the tree
// arrays and, if a duplicated communicator is owned, frees that too
// (spec.md §5). Errors encountered while releasing independent
// resources are aggregated, not short-circuited.
func (c *Cmesh) Unref() error {
	var teardownErr error
	c.refs.Unref(func() {
		var errs derror.MultiError
		if c.state == Committed && c.doDup && c.comm != nil {
			if err := c.comm.Free(); err != nil {
				errs = append(errs, fmt.Errorf("cmesh: freeing duplicated communicator: %w", err))
			}
		}
		c.trees = nil
		c.treesSet = nil
		c.treeOffsets = nil
		if len(errs) > 0 {
			teardownErr = errs
		}
	})
	return teardownErr
}

func (c *Cmesh) requireConfiguring(op string) error {
	if c.state != Configuring {
		return fmt.Errorf("cmesh.%s: %w: cmesh is %v, not configuring", op, mesherr.ContractViolation, c.state)
	}
	return nil
}

func (c *Cmesh) requireCommitted(op string) error {
	if c.state != Committed {
		return fmt.Errorf("cmesh.%s: %w: cmesh is %v, not committed", op, mesherr.ContractViolation, c.state)
	}
	return nil
}

// SetMPIComm sets the communicator used at commit. It fails if cm is
// nil, or if a communicator other than comm.World was already set
// (spec.md §4.1).
func (c *Cmesh) SetMPIComm(cm comm.Communicator, doDup bool) error {
	if err := c.requireConfiguring("SetMPIComm"); err != nil {
		return err
	}
	if cm == nil {
		return fmt.Errorf("cmesh.SetMPIComm: %w: communicator is nil", mesherr.ContractViolation)
	}
	if c.commSet && !c.commIsWorld {
		return fmt.Errorf("cmesh.SetMPIComm: %w: a non-default communicator was already set", mesherr.ContractViolation)
	}
	c.comm = cm
	c.doDup = doDup
	c.commSet = true
	c.commIsWorld = cm == comm.World
	return nil
}

// SetPartitioned selects replicated (flag=false) or partitioned
// (flag=true) mode, per spec.md §4.1. In replicated mode
// firstLocalTree and numGhosts are ignored and this is equivalent to
// SetNumTrees(numGlobalTrees). It fails if already called, or if any
// tree has been inserted.
func (c *Cmesh) SetPartitioned(flag bool, numGlobalTrees int64, firstLocalTree tree.ID, numGhosts int64) error {
	if err := c.requireConfiguring("SetPartitioned"); err != nil {
		return err
	}
	if c.partitionSetupDone {
		return fmt.Errorf("cmesh.SetPartitioned: %w: already called", mesherr.ContractViolation)
	}
	if c.treesInserted() {
		return fmt.Errorf("cmesh.SetPartitioned: %w: trees have already been inserted", mesherr.ContractViolation)
	}
	c.partitionSetupDone = true
	if !flag {
		c.partitioned = false
		return c.setNumTreesLocked(numGlobalTrees)
	}
	// Open Question (spec.md §9): num_trees=0 under set_partitioned
	// is treated as a ConfigurationError, matching set_num_trees's
	// own n>0 requirement in replicated mode rather than silently
	// falling through.
	if numGlobalTrees <= 0 {
		return fmt.Errorf("cmesh.SetPartitioned: %w: num_global_trees must be positive, got %d", mesherr.ConfigurationError, numGlobalTrees)
	}
	c.partitioned = true
	c.numTrees = numGlobalTrees
	c.firstTree = firstLocalTree
	c.numGhosts = numGhosts
	return nil
}

func (c *Cmesh) treesInserted() bool {
	for _, set := range c.treesSet {
		if set {
			return true
		}
	}
	return false
}

// SetNumTrees sets the local (and, in replicated mode, global) tree
// count, allocating the tree array to exactly n default slots
// (spec.md §4.1).
func (c *Cmesh) SetNumTrees(n int64) error {
	if err := c.requireConfiguring("SetNumTrees"); err != nil {
		return err
	}
	return c.setNumTreesLocked(n)
}

func (c *Cmesh) setNumTreesLocked(n int64) error {
	if c.treesInserted() {
		return fmt.Errorf("cmesh.SetNumTrees: %w: trees have already been inserted", mesherr.ContractViolation)
	}
	if !c.partitioned {
		if n <= 0 {
			return fmt.Errorf("cmesh.SetNumTrees: %w: replicated num_trees must be positive, got %d", mesherr.ConfigurationError, n)
		}
		c.numTrees = n
		c.numLocalTrees = n
		c.firstTree = 0
	} else {
		if c.numTrees <= 0 {
			return fmt.Errorf("cmesh.SetNumTrees: %w: global tree count must be set (via SetPartitioned) before local count", mesherr.ContractViolation)
		}
		if n < 0 {
			return fmt.Errorf("cmesh.SetNumTrees: %w: local num_trees must be non-negative, got %d", mesherr.ConfigurationError, n)
		}
		c.numLocalTrees = n
	}
	c.trees = make([]tree.Tree, c.numLocalTrees)
	c.treesSet = make([]bool, c.numLocalTrees)
	return nil
}

// localIndex converts a global tree id to an index into c.trees,
// using an inclusive lower bound (spec.md §9 Open Question: the
// source's first_tree < tree_id is treated as the unintended
// behavior; first_tree <= tree_id is what is implemented here).
func (c *Cmesh) localIndex(id tree.ID) (int64, bool) {
	idx := int64(id - c.firstTree)
	if idx < 0 || idx >= c.numLocalTrees {
		return 0, false
	}
	return idx, true
}

// SetTree populates one tree, fixing the cmesh's dimension on first
// insertion (spec.md §4.1).
func (c *Cmesh) SetTree(id tree.ID, class eclass.EClass) error {
	if err := c.requireConfiguring("SetTree"); err != nil {
		return err
	}
	idx, ok := c.localIndex(id)
	if !ok {
		return fmt.Errorf("cmesh.SetTree: %w: tree id %d is out of the local range", mesherr.ContractViolation, id)
	}
	dim := class.Dimension()
	if c.dimension == -1 {
		c.dimension = dim
	} else if c.dimension != dim {
		return fmt.Errorf("cmesh.SetTree: %w: tree %d has dimension %d, cmesh dimension is already %d", mesherr.ContractViolation, id, dim, c.dimension)
	}
	if c.treesSet[idx] {
		c.perEClassCount[c.trees[idx].EClass]--
	}
	c.trees[idx] = tree.NewTree(id, class)
	c.treesSet[idx] = true
	c.perEClassCount[class]++
	return nil
}

// JoinFaces connects face f1 of tree t1 to face f2 of tree t2. At
// least one of {t1, t2} must be local. Since a Cmesh only materializes
// its own local trees (spec.md §3 Cmesh), the caller must supply the
// eclass of whichever side is not local to this rank — exactly as a
// real caller building a distributed coarse mesh already knows the
// eclass of every tree it names, local or not, from its own global
// topology description. When both trees are local, otherClass is
// ignored (the locally-known eclasses are used, and both sides are
// connected symmetrically).
func (c *Cmesh) JoinFaces(t1, t2 tree.ID, f1, f2 int, otherClass eclass.EClass, orientation int) error {
	if err := c.requireConfiguring("JoinFaces"); err != nil {
		return err
	}
	idx1, local1 := c.localIndex(t1)
	idx2, local2 := c.localIndex(t2)
	if !local1 && !local2 {
		return fmt.Errorf("cmesh.JoinFaces: %w: neither tree %d nor %d is local", mesherr.ContractViolation, t1, t2)
	}

	class1 := otherClass
	if local1 {
		if !c.treesSet[idx1] {
			return fmt.Errorf("cmesh.JoinFaces: %w: tree %d has not been set", mesherr.ContractViolation, t1)
		}
		class1 = c.trees[idx1].EClass
	}
	class2 := otherClass
	if local2 {
		if !c.treesSet[idx2] {
			return fmt.Errorf("cmesh.JoinFaces: %w: tree %d has not been set", mesherr.ContractViolation, t2)
		}
		class2 = c.trees[idx2].EClass
	}
	if class1 == eclass.EClassLast || class2 == eclass.EClassLast {
		return fmt.Errorf("cmesh.JoinFaces: %w: eclass of the non-local tree must be supplied", mesherr.ContractViolation)
	}

	face1, err := class1.FaceEClass(f1)
	if err != nil {
		return fmt.Errorf("cmesh.JoinFaces: %w", err)
	}
	face2, err := class2.FaceEClass(f2)
	if err != nil {
		return fmt.Errorf("cmesh.JoinFaces: %w", err)
	}
	if face1 != face2 {
		return fmt.Errorf("cmesh.JoinFaces: %w: face topologies do not match (%v vs %v)", mesherr.ContractViolation, face1, face2)
	}

	if local1 {
		t := c.trees[idx1]
		if err := t.Connect(f1, t2, class2, f2, orientation); err != nil {
			return fmt.Errorf("cmesh.JoinFaces: %w", err)
		}
		c.trees[idx1] = t
	}
	if local2 {
		t := c.trees[idx2]
		if err := t.Connect(f2, t1, class1, f1, orientation); err != nil {
			return fmt.Errorf("cmesh.JoinFaces: %w", err)
		}
		c.trees[idx2] = t
	}
	return nil
}

// SetTreeOffsets installs an optional array of length size+1 giving
// the global first tree of each rank (spec.md §3); offsets must be
// monotone non-decreasing with offsets[size] == num_trees.
func (c *Cmesh) SetTreeOffsets(offsets []int64) error {
	if err := c.requireConfiguring("SetTreeOffsets"); err != nil {
		return err
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			return fmt.Errorf("cmesh.SetTreeOffsets: %w: offsets are not monotone non-decreasing", mesherr.ContractViolation)
		}
	}
	c.treeOffsets = offsets
	return nil
}

// Commit freezes the cmesh: it duplicates the communicator if do_dup
// was set, queries size/rank from the final communicator, and moves
// to the Committed state (spec.md §4.1).
func (c *Cmesh) Commit(ctx context.Context) error {
	if err := c.requireConfiguring("Commit"); err != nil {
		return err
	}
	if !c.commSet {
		return fmt.Errorf("cmesh.Commit: %w: no communicator set", mesherr.ConfigurationError)
	}
	if c.numTrees == 0 {
		return fmt.Errorf("cmesh.Commit: %w: num_trees is zero", mesherr.ConfigurationError)
	}

	finalComm := c.comm
	if c.doDup {
		dup, err := c.comm.Dup()
		if err != nil {
			return fmt.Errorf("cmesh.Commit: duplicating communicator: %w: %v", mesherr.CommunicatorError, err)
		}
		finalComm = dup
	}
	rank, size, err := comm.RankSize(finalComm)
	if err != nil {
		return fmt.Errorf("cmesh.Commit: %w", err)
	}
	if !c.partitioned {
		c.numLocalTrees = c.numTrees
		c.firstTree = 0
	}

	c.comm = finalComm
	c.rank = rank
	c.size = size
	c.state = Committed
	dlog.Infof(ctx, "cmesh: committed dimension=%d num_trees=%d num_local_trees=%d rank=%d/%d",
		c.dimension, c.numTrees, c.numLocalTrees, c.rank, c.size)
	return nil
}

// NumTrees returns the global tree count (spec.md §4.1).
func (c *Cmesh) NumTrees() (int64, error) {
	if err := c.requireCommitted("NumTrees"); err != nil {
		return 0, err
	}
	return c.numTrees, nil
}

// NumLocalTrees returns the local tree count (equal to NumTrees when
// replicated, spec.md §4.1).
func (c *Cmesh) NumLocalTrees() (int64, error) {
	if err := c.requireCommitted("NumLocalTrees"); err != nil {
		return 0, err
	}
	return c.numLocalTrees, nil
}

// TreeClass returns the eclass of the tree with the given global id.
func (c *Cmesh) TreeClass(id tree.ID) (eclass.EClass, error) {
	if err := c.requireCommitted("TreeClass"); err != nil {
		return eclass.EClassLast, err
	}
	idx, ok := c.localIndex(id)
	if !ok {
		return eclass.EClassLast, fmt.Errorf("cmesh.TreeClass: %w: tree id %d is out of the local range", mesherr.ContractViolation, id)
	}
	return c.trees[idx].EClass, nil
}

// Tree returns the full local tree record for a global tree id.
func (c *Cmesh) Tree(id tree.ID) (tree.Tree, error) {
	if err := c.requireCommitted("Tree"); err != nil {
		return tree.Tree{}, err
	}
	idx, ok := c.localIndex(id)
	if !ok {
		return tree.Tree{}, fmt.Errorf("cmesh.Tree: %w: tree id %d is out of the local range", mesherr.ContractViolation, id)
	}
	return c.trees[idx], nil
}

// GetMPIComm returns the committed communicator handle and the do-dup
// flag it was committed with.
func (c *Cmesh) GetMPIComm() (comm.Communicator, bool, error) {
	if err := c.requireCommitted("GetMPIComm"); err != nil {
		return nil, false, err
	}
	return c.comm, c.doDup, nil
}

// FirstTreeID returns the global id of this rank's first local tree.
func (c *Cmesh) FirstTreeID() (tree.ID, error) {
	if err := c.requireCommitted("FirstTreeID"); err != nil {
		return 0, err
	}
	return c.firstTree, nil
}

// NumGhosts returns the number of coarse-mesh ghost trees configured
// at partition time.
func (c *Cmesh) NumGhosts() (int64, error) {
	if err := c.requireCommitted("NumGhosts"); err != nil {
		return 0, err
	}
	return c.numGhosts, nil
}

// Dimension returns the cmesh's topological dimension, or -1 if no
// tree has been inserted yet.
func (c *Cmesh) Dimension() int { return c.dimension }

// Rank and Size return the values learned at commit; both are -1
// before commit (spec.md §3).
func (c *Cmesh) Rank() int { return c.rank }
func (c *Cmesh) Size() int { return c.size }

// Partitioned reports whether the cmesh is in partitioned mode.
func (c *Cmesh) Partitioned() bool { return c.partitioned }

// PerEClassCount returns how many trees of class have been inserted.
func (c *Cmesh) PerEClassCount(class eclass.EClass) int64 {
	return c.perEClassCount[class]
}

// Bounds is the result of UniformBounds: the inclusive tree range for
// this rank under a uniform refinement of `level`, plus the first/last
// child index within the boundary trees (spec.md §4.1).
type Bounds struct {
	FirstLocalTree   tree.ID
	ChildInTreeBegin int64
	LastLocalTree    tree.ID
	ChildInTreeEnd   int64
}

// Empty reports whether this Bounds represents an empty per-rank slice
// (spec.md §4.1 failure semantics / §8 S5).
func (b Bounds) Empty() bool {
	return b.FirstLocalTree == b.LastLocalTree && b.ChildInTreeBegin == b.ChildInTreeEnd
}

// UniformBounds answers: for a uniform refinement splitting each tree
// into 2^(dimension*level) children ordered by tree then child index,
// what inclusive tree range belongs to this rank, and what is the
// first/last child index within the boundary trees (spec.md §4.1)?
//
// It fails with mesherr.Unsupported if any tree in the cmesh has
// eclass Pyramid (hybrid pyramid partitioning is out of scope).
func (c *Cmesh) UniformBounds(level int) (Bounds, error) {
	if err := c.requireCommitted("UniformBounds"); err != nil {
		return Bounds{}, err
	}
	if c.perEClassCount[eclass.Pyramid] > 0 {
		return Bounds{}, fmt.Errorf("cmesh.UniformBounds: %w: hybrid pyramid partitioning is not supported", mesherr.Unsupported)
	}
	if level < 0 {
		return Bounds{}, fmt.Errorf("cmesh.UniformBounds: %w: level must be non-negative, got %d", mesherr.ContractViolation, level)
	}

	childrenPerTree := uint64(1) << uint(c.dimension*level)
	totalChildren := childrenPerTree * uint64(c.numTrees)

	var firstChild, lastChild uint64
	if c.rank == 0 {
		firstChild = 0
	} else {
		firstChild = mulDivFloor(totalChildren, uint64(c.rank), uint64(c.size))
	}
	if c.rank == c.size-1 {
		lastChild = totalChildren
	} else {
		lastChild = mulDivFloor(totalChildren, uint64(c.rank+1), uint64(c.size))
	}

	firstLocalTree := firstChild / childrenPerTree
	childBegin := firstChild - firstLocalTree*childrenPerTree

	var lastLocalTree uint64
	if firstChild < lastChild {
		lastLocalTree = (lastChild - 1) / childrenPerTree
	} else {
		lastLocalTree = firstLocalTree
	}
	childEnd := lastChild - lastLocalTree*childrenPerTree

	return Bounds{
		FirstLocalTree:   tree.ID(firstLocalTree),
		ChildInTreeBegin: int64(childBegin),
		LastLocalTree:    tree.ID(lastLocalTree),
		ChildInTreeEnd:   int64(childEnd),
	}, nil
}

// mulDivFloor computes floor(a*b/d) using a 128-bit intermediate
// product so that a*b can exceed 64 bits without overflowing, per
// spec.md §4.1's "use extended-precision multiplication... to avoid
// 64-bit overflow for large G" instruction.
func mulDivFloor(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}

// Equal reports whether c and o were built from structurally
// equivalent setter sequences: same dimension, partition shape, and
// per-tree topology, ignoring communicator identity (spec.md §8 P8).
func (c *Cmesh) Equal(o *Cmesh) bool {
	if c.state != o.state || c.dimension != o.dimension || c.partitioned != o.partitioned {
		return false
	}
	if c.numTrees != o.numTrees || c.numLocalTrees != o.numLocalTrees || c.firstTree != o.firstTree {
		return false
	}
	if len(c.trees) != len(o.trees) {
		return false
	}
	for i := range c.trees {
		if !treesEqual(c.trees[i], o.trees[i]) {
			return false
		}
	}
	return true
}

func treesEqual(a, b tree.Tree) bool {
	if a.GlobalID != b.GlobalID || a.EClass != b.EClass || len(a.Faces) != len(b.Faces) {
		return false
	}
	for i := range a.Faces {
		if a.Faces[i] != b.Faces[i] {
			return false
		}
	}
	return true
}

// debugView is the shape DebugJSON serializes; it exists so field
// names in the dump are stable even if Cmesh's internal layout shifts.
// TreeIDs is a containers.Set rather than a plain slice so the dump
// sorts and dedupes through the same lowmemjson.Encodable path
// ghost.Ghost.DebugJSON uses for its own tree-id sets.
type debugView struct {
	State         string
	Dimension     int
	Partitioned   bool
	NumTrees      int64
	NumLocalTrees int64
	FirstTree     tree.ID
	Rank, Size    int
	TreeIDs       containers.Set[int64]
}

// DebugJSON dumps a human-inspectable snapshot of the cmesh, not a
// persistence format: there is no corresponding load path, so this
// does not reopen the "no NetCDF/VTK writers" non-goal.
func (c *Cmesh) DebugJSON() ([]byte, error) {
	ids := make(containers.Set[int64], len(c.trees))
	for i, set := range c.treesSet {
		if set {
			ids.Insert(int64(c.trees[i].GlobalID))
		}
	}
	view := debugView{
		State:         c.state.String(),
		Dimension:     c.dimension,
		Partitioned:   c.partitioned,
		NumTrees:      c.numTrees,
		NumLocalTrees: c.numLocalTrees,
		FirstTree:     c.firstTree,
		Rank:          c.rank,
		Size:          c.size,
		TreeIDs:       ids,
	}
	var buf bytes.Buffer
	if err := lowmemjson.Encode(&buf, view); err != nil {
		return nil, fmt.Errorf("cmesh.DebugJSON: %w", err)
	}
	return buf.Bytes(), nil
}
