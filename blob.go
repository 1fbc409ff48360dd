package decds

import (
	"fmt"

	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/chunkset"
	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/merkle"
	"github.com/decds/decds/pkg/workerpool"
)

// Blob is a fully encoded blob: every chunkset's coded chunks with both
// inclusion proofs attached, plus the metadata record that commits to them.
type Blob struct {
	meta Metadata
	sets []*chunkset.ChunkSet
}

// Break encodes data into proof-carrying chunks. The input is zero-padded
// to a whole number of chunksets; the original length is preserved in the
// metadata. Chunksets are encoded in parallel, and the result is
// deterministic for a given (data, opts.Seed) pair regardless of scheduling.
func Break(data []byte, opts Options) (*Blob, error) {
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}

	log := opts.logger()
	blobDigest := hashing.Sum(data)
	length := uint64(len(data))
	n := chunksetCount(length)

	padded := data
	if paddedLen := int(n) * chunkset.Size; len(data) < paddedLen {
		padded = make([]byte, paddedLen)
		copy(padded, data)
	}

	log.Info("encoding blob", "bytes", length, "chunksets", n)

	sets := make([]*chunkset.ChunkSet, n)
	pool := workerpool.New(opts.Workers)
	defer pool.Close()

	for id := uint32(0); id < n; id++ {
		id := id
		pool.Submit(func() error {
			cs, err := chunkset.Build(id, padded[int(id)*chunkset.Size:int(id+1)*chunkset.Size], opts.Seed)
			if err != nil {
				return fmt.Errorf("decds: chunkset %d: %w", id, err)
			}
			sets[id] = cs
			return nil
		})
	}
	if err := pool.Wait(); err != nil {
		return nil, err
	}

	roots := make([]hashing.Digest, n)
	for id, cs := range sets {
		roots[id] = cs.Root()
	}
	tree, err := merkle.New(roots)
	if err != nil {
		return nil, fmt.Errorf("decds: blob tree: %w", err)
	}

	for id, cs := range sets {
		proof, err := tree.Prove(id)
		if err != nil {
			return nil, fmt.Errorf("decds: blob proof for chunkset %d: %w", id, err)
		}
		cs.AttachBlobProof(proof)
	}

	log.Info("blob encoded", "root", tree.Root())

	return &Blob{
		meta: Metadata{
			Version:    MetadataVersion,
			Root:       tree.Root(),
			BlobDigest: blobDigest,
			Length:     length,
			Chunksets:  n,
		},
		sets: sets,
	}, nil
}

// Metadata returns the blob's metadata record.
func (b *Blob) Metadata() Metadata {
	return b.meta
}

// Chunkset returns the encoded chunkset with the given id.
func (b *Blob) Chunkset(id uint32) (*chunkset.ChunkSet, error) {
	if id >= uint32(len(b.sets)) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidChunksetID, id, len(b.sets))
	}
	return b.sets[id], nil
}

// Share collects the coded chunk at the given share index from every
// chunkset, in chunkset order. Handing each of the 16 shares to a different
// holder spreads loss evenly: a blob survives as long as the remaining
// holders' chunks reach rank 10 in every chunkset.
func (b *Blob) Share(shareID int) ([]*chunk.ProofCarryingChunk, error) {
	if shareID < 0 || shareID >= chunkset.CodedChunks {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidShareID, shareID, chunkset.CodedChunks)
	}

	share := make([]*chunk.ProofCarryingChunk, len(b.sets))
	for id, cs := range b.sets {
		c, err := cs.Chunk(shareID)
		if err != nil {
			return nil, err
		}
		share[id] = c
	}
	return share, nil
}
