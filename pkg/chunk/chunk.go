// Package chunk defines the proof-carrying chunk, the unit in which encoded
// blob data travels and is persisted. A coded chunk pairs a coefficient
// vector with its payload; the proof-carrying form adds the two Merkle
// inclusion proofs that tie the chunk to its chunkset and the chunkset to
// the blob.
package chunk

import (
	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/merkle"
)

// Wire-format constants. Changing any of these invalidates every chunk file
// ever written, so they are fixed for the lifetime of the format.
const (
	// PayloadLen is the byte length of one coded chunk's payload (1 MiB).
	PayloadLen = 1 << 20

	// VectorLen is the number of coefficients in a coding vector, equal to
	// the number of source chunks combined into each coded chunk.
	VectorLen = 10

	// CodedPerSet is the number of coded chunks produced per chunkset and
	// therefore the leaf count of every chunkset Merkle tree.
	CodedPerSet = 16
)

// Chunk is a single coded symbol: a coefficient vector over GF(2^8) and the
// corresponding linear combination of the chunkset's source chunks.
type Chunk struct {
	Vector  [VectorLen]byte
	Payload []byte
}

// Digest hashes the coefficient vector followed by the payload.
func (c *Chunk) Digest() hashing.Digest {
	h := hashing.NewHasher()
	h.Write(c.Vector[:])
	h.Write(c.Payload)
	return h.Sum()
}

// ProofCarryingChunk is a coded chunk bundled with its position and both
// inclusion proofs. It is self-authenticating against a blob root.
type ProofCarryingChunk struct {
	// ChunksetID is the index of the chunkset this chunk belongs to.
	ChunksetID uint32
	// Index is the chunk's position within its chunkset, 0..15.
	Index uint8

	Chunk Chunk

	// SetProof places the chunk's digest in the chunkset's 16-leaf tree.
	SetProof merkle.Proof
	// BlobProof places the chunkset's root in the blob tree.
	BlobProof merkle.Proof
}

// ChunksetRoot returns the chunkset root implied by the chunk's own digest
// and its chunkset proof. The root is not carried on the wire; it is
// reconstructed as the Merkle climb's final digest and only trustworthy once
// the blob proof has validated it against a known blob root.
func (p *ProofCarryingChunk) ChunksetRoot() hashing.Digest {
	return p.SetProof.Climb(p.Chunk.Digest())
}

// Verify reports whether the chunk authenticates against blobRoot. Both
// proofs must hold, and each proof's position must match the chunk's own
// claimed position: without that binding a chunk valid for one slot could be
// replayed into another.
func (p *ProofCarryingChunk) Verify(blobRoot hashing.Digest) bool {
	if p.SetProof.LeafIndex != uint32(p.Index) || p.SetProof.LeafCount != CodedPerSet {
		return false
	}
	if len(p.SetProof.Path) != merkle.PathLen(CodedPerSet) {
		return false
	}
	if p.BlobProof.LeafIndex != p.ChunksetID {
		return false
	}
	return merkle.Verify(p.ChunksetRoot(), p.BlobProof, blobRoot)
}
