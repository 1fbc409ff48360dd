// Package chunkset encodes fixed 10 MiB blocks of blob data into 16 coded,
// Merkle-committed chunks, and reconstructs the block from any 10 linearly
// independent coded chunks.
package chunkset

import (
	"encoding/binary"
	"errors"
	"fmt"

	"lukechampine.com/frand"

	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/merkle"
	"github.com/decds/decds/pkg/rlnc"
)

const (
	// SourceChunks is the number of source chunks a chunkset is split into.
	SourceChunks = chunk.VectorLen
	// CodedChunks is the number of coded chunks produced per chunkset.
	CodedChunks = chunk.CodedPerSet
	// ChunkLen is the byte length of a single source or coded chunk.
	ChunkLen = chunk.PayloadLen
	// Size is the raw byte length of a chunkset before coding (10 MiB).
	Size = SourceChunks * ChunkLen
)

var (
	// ErrInvalidChunksetSize is returned when a chunkset is built from a
	// block whose length is not exactly Size.
	ErrInvalidChunksetSize = errors.New("chunkset: invalid chunkset size")
	// ErrIndexOutOfBounds is returned on chunk lookups past CodedChunks.
	ErrIndexOutOfBounds = errors.New("chunkset: chunk index out of bounds")
	// ErrInvalidProof is returned when a submitted chunk's inclusion proof
	// does not validate against the chunkset root.
	ErrInvalidProof = errors.New("chunkset: invalid inclusion proof")
	// ErrInvalidChunkMetadata is returned when a submitted chunk's index,
	// payload length or chunkset id is malformed.
	ErrInvalidChunkMetadata = errors.New("chunkset: invalid chunk metadata")
	// ErrAlreadyReady is returned when a chunk is submitted after the
	// chunkset reached full rank.
	ErrAlreadyReady = errors.New("chunkset: already ready to repair")
	// ErrNotReady is returned when repair is attempted below full rank.
	ErrNotReady = errors.New("chunkset: not ready to repair")
)

// seedDomain separates coding-seed derivation from every other use of the
// hash function. Versioned so the derivation can change without silently
// producing colliding seeds.
const seedDomain = "decds/rlnc/v1"

// codingSeed derives the 32-byte RNG key for one chunkset. It depends only
// on the global seed and the chunkset id, never on scheduling order, so
// parallel builds stay deterministic.
func codingSeed(globalSeed uint64, chunksetID uint32) [32]byte {
	var buf [len(seedDomain) + 8 + 4]byte
	copy(buf[:], seedDomain)
	binary.LittleEndian.PutUint64(buf[len(seedDomain):], globalSeed)
	binary.LittleEndian.PutUint32(buf[len(seedDomain)+8:], chunksetID)
	return hashing.Sum(buf[:])
}

// codingRNG returns the deterministic coefficient stream for one chunkset.
func codingRNG(globalSeed uint64, chunksetID uint32) *frand.RNG {
	key := codingSeed(globalSeed, chunksetID)
	return frand.NewCustom(key[:], 1024, 12)
}

// ChunkSet holds the 16 coded chunks of one encoded block together with
// their Merkle commitment.
type ChunkSet struct {
	id     uint32
	root   hashing.Digest
	chunks []chunk.ProofCarryingChunk
}

// Build encodes one Size-byte block. The coded chunks' coefficient vectors
// are drawn from an RNG keyed by (seed, id), so the same inputs always
// produce the same chunkset root. The built chunks carry their chunkset
// proofs; blob proofs are attached later via AttachBlobProof.
func Build(id uint32, data []byte, seed uint64) (*ChunkSet, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("%w: got %d bytes, expected %d", ErrInvalidChunksetSize, len(data), Size)
	}

	enc, err := rlnc.NewEncoder(data, SourceChunks)
	if err != nil {
		return nil, fmt.Errorf("chunkset: encoder: %w", err)
	}

	rng := codingRNG(seed, id)
	chunks := make([]chunk.ProofCarryingChunk, CodedChunks)
	leaves := make([]hashing.Digest, CodedChunks)
	for i := range chunks {
		vector, payload, err := enc.CodedPiece(rng)
		if err != nil {
			return nil, fmt.Errorf("chunkset: coding chunk %d: %w", i, err)
		}

		c := &chunks[i]
		c.ChunksetID = id
		c.Index = uint8(i)
		copy(c.Chunk.Vector[:], vector)
		c.Chunk.Payload = payload
		leaves[i] = c.Chunk.Digest()
	}

	tree, err := merkle.New(leaves)
	if err != nil {
		return nil, fmt.Errorf("chunkset: merkle tree: %w", err)
	}

	for i := range chunks {
		proof, err := tree.Prove(i)
		if err != nil {
			return nil, fmt.Errorf("chunkset: proof for chunk %d: %w", i, err)
		}
		chunks[i].SetProof = proof
	}

	return &ChunkSet{id: id, root: tree.Root(), chunks: chunks}, nil
}

// ID returns the chunkset's index within its blob.
func (cs *ChunkSet) ID() uint32 {
	return cs.id
}

// Root returns the Merkle root over the 16 coded chunk digests.
func (cs *ChunkSet) Root() hashing.Digest {
	return cs.root
}

// Chunk returns the coded chunk at index i.
func (cs *ChunkSet) Chunk(i int) (*chunk.ProofCarryingChunk, error) {
	if i < 0 || i >= len(cs.chunks) {
		return nil, fmt.Errorf("%w: index %d", ErrIndexOutOfBounds, i)
	}
	return &cs.chunks[i], nil
}

// AttachBlobProof stores the blob-level inclusion proof of this chunkset's
// root on every coded chunk, completing them into fully proof-carrying form.
func (cs *ChunkSet) AttachBlobProof(proof merkle.Proof) {
	for i := range cs.chunks {
		cs.chunks[i].BlobProof = proof
	}
}
