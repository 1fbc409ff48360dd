// Package merkle implements the binary Merkle tree that commits to coded
// chunks within a chunkset and to chunkset roots within a blob. Leaf sets are
// padded to the next power of two by repeating the last leaf, so proofs for a
// tree with n leaves always carry ceil(log2(n)) sibling digests.
package merkle

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/decds/decds/pkg/hashing"
)

var (
	// ErrEmptyInput is returned when a tree is built from zero leaves.
	ErrEmptyInput = errors.New("merkle: no leaves to build tree on")
	// ErrIndexOutOfBounds is returned when a proof is requested for a leaf
	// index past the tree's extent.
	ErrIndexOutOfBounds = errors.New("merkle: leaf index out of bounds")
)

// Tree is a complete binary Merkle tree over a fixed set of leaf digests.
type Tree struct {
	// levels[0] is the padded leaf level, levels[len-1] holds the root.
	levels [][]hashing.Digest
	leaves int
}

// Proof is an inclusion proof for a single leaf. Path holds the sibling
// digests from the leaf level up to the level below the root.
type Proof struct {
	LeafIndex uint32
	LeafCount uint32
	Path      []hashing.Digest
}

// PathLen returns the number of sibling digests a proof carries for a tree
// with leafCount leaves.
func PathLen(leafCount uint32) int {
	if leafCount <= 1 {
		return 0
	}
	return bits.Len32(nextPow2(leafCount) - 1)
}

func nextPow2(n uint32) uint32 {
	if n&(n-1) == 0 {
		return n
	}
	return 1 << bits.Len32(n)
}

// New builds a tree over the given leaf digests. The leaf slice is copied;
// the caller may reuse it afterwards.
func New(leaves []hashing.Digest) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrEmptyInput
	}

	m := int(nextPow2(uint32(len(leaves))))
	level := make([]hashing.Digest, m)
	copy(level, leaves)
	for i := len(leaves); i < m; i++ {
		level[i] = leaves[len(leaves)-1]
	}

	levels := [][]hashing.Digest{level}
	for len(level) > 1 {
		parent := make([]hashing.Digest, len(level)/2)
		for i := range parent {
			parent[i] = hashing.SumPair(level[2*i], level[2*i+1])
		}
		levels = append(levels, parent)
		level = parent
	}

	return &Tree{levels: levels, leaves: len(leaves)}, nil
}

// Root returns the digest at the tree's apex.
func (t *Tree) Root() hashing.Digest {
	return t.levels[len(t.levels)-1][0]
}

// LeafCount returns the number of leaves the tree was built over, excluding
// padding duplicates.
func (t *Tree) LeafCount() int {
	return t.leaves
}

// Prove generates the inclusion proof for leaf i.
func (t *Tree) Prove(i int) (Proof, error) {
	if i < 0 || i >= t.leaves {
		return Proof{}, fmt.Errorf("%w: index %d, leaf count %d", ErrIndexOutOfBounds, i, t.leaves)
	}

	path := make([]hashing.Digest, 0, len(t.levels)-1)
	idx := i
	for _, level := range t.levels[:len(t.levels)-1] {
		path = append(path, level[idx^1])
		idx >>= 1
	}

	return Proof{
		LeafIndex: uint32(i),
		LeafCount: uint32(t.leaves),
		Path:      path,
	}, nil
}

// Climb recomputes the root implied by the proof for the given leaf digest.
// At each level the proof's index bit decides whether the running digest is
// the left or the right child.
func (p Proof) Climb(leaf hashing.Digest) hashing.Digest {
	current := leaf
	idx := p.LeafIndex
	for _, sibling := range p.Path {
		if idx&1 == 0 {
			current = hashing.SumPair(current, sibling)
		} else {
			current = hashing.SumPair(sibling, current)
		}
		idx >>= 1
	}
	return current
}

// Verify reports whether proof places leaf under expectedRoot. A proof whose
// shape does not match its own leaf count is never valid.
func Verify(leaf hashing.Digest, proof Proof, expectedRoot hashing.Digest) bool {
	if proof.LeafCount == 0 || proof.LeafIndex >= proof.LeafCount {
		return false
	}
	if len(proof.Path) != PathLen(proof.LeafCount) {
		return false
	}
	return proof.Climb(leaf) == expectedRoot
}
