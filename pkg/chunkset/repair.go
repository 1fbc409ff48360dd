package chunkset

import (
	"fmt"

	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/merkle"
	"github.com/decds/decds/pkg/rlnc"
)

// AddOutcome reports what a repairer did with a submitted chunk.
type AddOutcome uint8

const (
	// Accepted means the chunk was verified and increased the decoder's
	// rank.
	Accepted AddOutcome = iota
	// Redundant means the chunk was verified but linearly dependent on
	// chunks already absorbed; it was dropped.
	Redundant
	// Ready means the chunk was accepted and completed the rank needed to
	// repair.
	Ready
	// Rejected means the chunk failed verification or arrived after the
	// chunkset was already ready; the accompanying error names the reason.
	Rejected
)

// String returns the outcome's name.
func (o AddOutcome) String() string {
	switch o {
	case Accepted:
		return "accepted"
	case Redundant:
		return "redundant"
	case Ready:
		return "ready"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("AddOutcome(%d)", uint8(o))
	}
}

// RepairingChunkSet accumulates verified coded chunks for a single chunkset
// until enough linearly independent coding vectors are gathered to invert
// the code.
type RepairingChunkSet struct {
	id   uint32
	root hashing.Digest
	dec  *rlnc.Decoder
}

// NewRepairing prepares a repairer for chunkset id with the known chunkset
// root. Chunks whose inclusion proof does not validate against root are
// rejected.
func NewRepairing(id uint32, root hashing.Digest) *RepairingChunkSet {
	dec, err := rlnc.NewDecoder(ChunkLen, SourceChunks)
	if err != nil {
		// Static piece geometry; constructing the decoder cannot fail.
		panic(err)
	}
	return &RepairingChunkSet{id: id, root: root, dec: dec}
}

// ID returns the chunkset id this repairer collects for.
func (r *RepairingChunkSet) ID() uint32 {
	return r.id
}

// Root returns the chunkset root chunks are verified against.
func (r *RepairingChunkSet) Root() hashing.Digest {
	return r.root
}

// Rank returns the number of linearly independent chunks absorbed so far.
func (r *RepairingChunkSet) Rank() int {
	return r.dec.Rank()
}

// Ready reports whether enough independent chunks have been absorbed to
// repair. Once ready, further chunks are rejected.
func (r *RepairingChunkSet) Ready() bool {
	return r.dec.Ready()
}

// Add verifies and absorbs one coded chunk. The outcome tells the caller
// whether the chunk was useful; a Rejected outcome carries the reason as the
// error, and the accumulator is unchanged for anything but Accepted/Ready.
func (r *RepairingChunkSet) Add(pcc *chunk.ProofCarryingChunk) (AddOutcome, error) {
	if r.Ready() {
		return Rejected, fmt.Errorf("%w: chunkset %d", ErrAlreadyReady, r.id)
	}
	if pcc.ChunksetID != r.id {
		return Rejected, fmt.Errorf("%w: chunk belongs to chunkset %d, not %d", ErrInvalidChunkMetadata, pcc.ChunksetID, r.id)
	}
	if pcc.Index >= CodedChunks {
		return Rejected, fmt.Errorf("%w: chunk index %d", ErrInvalidChunkMetadata, pcc.Index)
	}
	if len(pcc.Chunk.Payload) != ChunkLen {
		return Rejected, fmt.Errorf("%w: payload is %d bytes", ErrInvalidChunkMetadata, len(pcc.Chunk.Payload))
	}
	if pcc.SetProof.LeafIndex != uint32(pcc.Index) || !merkle.Verify(pcc.Chunk.Digest(), pcc.SetProof, r.root) {
		return Rejected, fmt.Errorf("%w: chunk %d of chunkset %d", ErrInvalidProof, pcc.Index, r.id)
	}

	useful, err := r.dec.Add(pcc.Chunk.Vector[:], pcc.Chunk.Payload)
	if err != nil {
		return Rejected, fmt.Errorf("%w: %v", ErrInvalidChunkMetadata, err)
	}
	if !useful {
		return Redundant, nil
	}
	if r.Ready() {
		return Ready, nil
	}
	return Accepted, nil
}

// Repair inverts the accumulated coding matrix and returns the chunkset's
// original Size bytes. It fails with ErrNotReady below full rank.
func (r *RepairingChunkSet) Repair() ([]byte, error) {
	if !r.Ready() {
		return nil, fmt.Errorf("%w: chunkset %d has rank %d of %d", ErrNotReady, r.id, r.dec.Rank(), SourceChunks)
	}

	data, err := r.dec.Decode()
	if err != nil {
		return nil, fmt.Errorf("chunkset %d: %w", r.id, err)
	}
	return data, nil
}
