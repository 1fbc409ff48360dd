package decds

import (
	"fmt"
	"sync"

	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/chunkset"
	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/workerpool"
)

// RepairingBlob reconstructs a blob from an unordered stream of
// proof-carrying chunks. Every chunk is verified against the blob root from
// the metadata before it reaches a chunkset accumulator; invalid chunks are
// reported through the AddOutcome and otherwise ignored, so a partially
// corrupt stream never aborts the repair.
type RepairingBlob struct {
	meta  Metadata
	opts  Options
	slots []repairSlot
}

// repairSlot guards one chunkset's accumulator. The repairer is created
// lazily on the first chunk that authenticates for the chunkset, because
// the chunkset root is not carried in the metadata: it is recovered from
// the first valid chunk's proof climb, which the blob proof authenticates.
type repairSlot struct {
	mu  sync.Mutex
	rcs *chunkset.RepairingChunkSet
}

// NewRepairingBlob prepares a repairer for the blob the metadata describes.
func NewRepairingBlob(meta Metadata, opts Options) *RepairingBlob {
	return &RepairingBlob{
		meta:  meta,
		opts:  opts,
		slots: make([]repairSlot, meta.Chunksets),
	}
}

// Metadata returns the metadata record the repairer was built from.
func (rb *RepairingBlob) Metadata() Metadata {
	return rb.meta
}

// Add verifies one chunk against the blob root and routes it to its
// chunkset's accumulator. Chunks for distinct chunksets may be added
// concurrently; chunks for the same chunkset are serialized internally.
func (rb *RepairingBlob) Add(pcc *chunk.ProofCarryingChunk) (AddOutcome, error) {
	if pcc.ChunksetID >= rb.meta.Chunksets {
		return Rejected, fmt.Errorf("%w: chunk claims chunkset %d of %d", chunkset.ErrInvalidChunkMetadata, pcc.ChunksetID, rb.meta.Chunksets)
	}
	if !pcc.Verify(rb.meta.Root) {
		return Rejected, fmt.Errorf("%w: chunk %d of chunkset %d", chunkset.ErrInvalidProof, pcc.Index, pcc.ChunksetID)
	}

	slot := &rb.slots[pcc.ChunksetID]
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.rcs == nil {
		slot.rcs = chunkset.NewRepairing(pcc.ChunksetID, pcc.ChunksetRoot())
	}
	return slot.rcs.Add(pcc)
}

// ChunksetReady reports whether the given chunkset has gathered enough
// independent chunks.
func (rb *RepairingBlob) ChunksetReady(id uint32) (bool, error) {
	if id >= rb.meta.Chunksets {
		return false, fmt.Errorf("%w: %d of %d", ErrInvalidChunksetID, id, rb.meta.Chunksets)
	}

	slot := &rb.slots[id]
	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.rcs != nil && slot.rcs.Ready(), nil
}

// Ready reports whether every chunkset is ready to repair.
func (rb *RepairingBlob) Ready() bool {
	for id := range rb.slots {
		slot := &rb.slots[id]
		slot.mu.Lock()
		ready := slot.rcs != nil && slot.rcs.Ready()
		slot.mu.Unlock()
		if !ready {
			return false
		}
	}
	return true
}

// MissingChunksets returns the ids of chunksets still below full rank.
func (rb *RepairingBlob) MissingChunksets() []uint32 {
	var missing []uint32
	for id := range rb.slots {
		slot := &rb.slots[id]
		slot.mu.Lock()
		ready := slot.rcs != nil && slot.rcs.Ready()
		slot.mu.Unlock()
		if !ready {
			missing = append(missing, uint32(id))
		}
	}
	return missing
}

// Repair decodes every chunkset in parallel, concatenates them in order,
// strips the zero padding and checks the result against the recorded blob
// digest. It fails with ErrNotReady while any chunkset is below full rank.
func (rb *RepairingBlob) Repair() ([]byte, error) {
	if missing := rb.MissingChunksets(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %d chunksets below full rank", ErrNotReady, len(missing))
	}

	log := rb.opts.logger()
	log.Info("repairing blob", "chunksets", rb.meta.Chunksets, "bytes", rb.meta.Length)

	out := make([]byte, rb.meta.PaddedLength())
	pool := workerpool.New(rb.opts.Workers)
	defer pool.Close()

	for id := range rb.slots {
		id := uint32(id)
		pool.Submit(func() error {
			slot := &rb.slots[id]
			slot.mu.Lock()
			data, err := slot.rcs.Repair()
			slot.mu.Unlock()
			if err != nil {
				return fmt.Errorf("decds: chunkset %d: %w", id, err)
			}
			copy(out[uint64(id)*chunkset.Size:], data)
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	out = out[:rb.meta.Length]
	if hashing.Sum(out) != rb.meta.BlobDigest {
		return nil, ErrDigestMismatch
	}

	log.Info("blob repaired", "bytes", len(out))
	return out, nil
}
