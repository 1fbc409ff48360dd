package decds

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/frand"

	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/chunkset"
)

// collectChunks gathers every proof-carrying chunk of the blob in share
// order, optionally keeping only share ids below keep per chunkset.
func collectChunks(t *testing.T, blob *Blob, keep int) []*chunk.ProofCarryingChunk {
	t.Helper()

	var chunks []*chunk.ProofCarryingChunk
	for shareID := 0; shareID < keep; shareID++ {
		share, err := blob.Share(shareID)
		require.NoError(t, err)
		chunks = append(chunks, share...)
	}
	return chunks
}

func shuffle(chunks []*chunk.ProofCarryingChunk) {
	frand.Shuffle(len(chunks), func(i, j int) {
		chunks[i], chunks[j] = chunks[j], chunks[i]
	})
}

func TestRoundTripMultiChunkset(t *testing.T) {
	data := frand.Bytes(2*chunkset.Size + 777)

	blob, err := Break(data, Options{Seed: 11})
	require.NoError(t, err)
	meta := blob.Metadata()

	chunks := collectChunks(t, blob, chunkset.CodedChunks)
	shuffle(chunks)

	repairer := NewRepairingBlob(meta, Options{})
	for _, pcc := range chunks {
		outcome, err := repairer.Add(pcc)
		if outcome == Rejected {
			// Only post-ready submissions may be turned away.
			assert.ErrorIs(t, err, chunkset.ErrAlreadyReady)
		}
	}

	require.True(t, repairer.Ready())
	assert.Empty(t, repairer.MissingChunksets())

	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}

func TestRoundTripSingleByte(t *testing.T) {
	data := []byte{0x5a}

	blob, err := Break(data, Options{Seed: 12})
	require.NoError(t, err)

	repairer := NewRepairingBlob(blob.Metadata(), Options{})
	chunks := collectChunks(t, blob, chunkset.CodedChunks)
	for _, pcc := range chunks {
		if ready, _ := repairer.ChunksetReady(pcc.ChunksetID); ready {
			continue
		}
		_, err := repairer.Add(pcc)
		require.NoError(t, err)
	}

	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}

func TestRepairWithPartialLoss(t *testing.T) {
	data := frand.Bytes(chunkset.Size + 50000)

	blob, err := Break(data, Options{Seed: 13})
	require.NoError(t, err)

	// Five of sixteen shares lost per chunkset; eleven valid chunks are
	// almost surely enough independent vectors.
	chunks := collectChunks(t, blob, 11)
	shuffle(chunks)

	repairer := NewRepairingBlob(blob.Metadata(), Options{})
	for _, pcc := range chunks {
		if ready, _ := repairer.ChunksetReady(pcc.ChunksetID); ready {
			continue
		}
		_, err := repairer.Add(pcc)
		require.NoError(t, err)
	}

	require.True(t, repairer.Ready())
	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}

func TestRepairNotReadyWithNineChunks(t *testing.T) {
	data := frand.Bytes(chunkset.Size / 2)

	blob, err := Break(data, Options{Seed: 14})
	require.NoError(t, err)

	// Nine chunks can never reach rank ten.
	chunks := collectChunks(t, blob, chunkset.SourceChunks-1)
	repairer := NewRepairingBlob(blob.Metadata(), Options{})
	for _, pcc := range chunks {
		_, err := repairer.Add(pcc)
		require.NoError(t, err)
	}

	assert.False(t, repairer.Ready())
	assert.Equal(t, []uint32{0}, repairer.MissingChunksets())

	ready, err := repairer.ChunksetReady(0)
	require.NoError(t, err)
	assert.False(t, ready)

	_, err = repairer.Repair()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAddRejectsTamperedChunks(t *testing.T) {
	data := frand.Bytes(1000)

	blob, err := Break(data, Options{Seed: 15})
	require.NoError(t, err)
	repairer := NewRepairingBlob(blob.Metadata(), Options{})

	share, err := blob.Share(0)
	require.NoError(t, err)
	good := share[0]

	tampered := *good
	tampered.Chunk.Payload = append([]byte(nil), good.Chunk.Payload...)
	tampered.Chunk.Payload[123] ^= 0x40
	outcome, err := repairer.Add(&tampered)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, chunkset.ErrInvalidProof)

	misrouted := *good
	misrouted.ChunksetID = 1
	outcome, err = repairer.Add(&misrouted)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, chunkset.ErrInvalidChunkMetadata)

	outcome, err = repairer.Add(good)
	require.NoError(t, err)
	assert.Equal(t, Accepted, outcome)
}

func TestChunksetReadyOutOfBounds(t *testing.T) {
	meta := sampleMetadata()
	repairer := NewRepairingBlob(meta, Options{})

	_, err := repairer.ChunksetReady(meta.Chunksets)
	assert.ErrorIs(t, err, ErrInvalidChunksetID)
}

func TestOutcomesAcrossChunksetLifecycle(t *testing.T) {
	data := frand.Bytes(100)

	blob, err := Break(data, Options{Seed: 16})
	require.NoError(t, err)
	repairer := NewRepairingBlob(blob.Metadata(), Options{})

	chunks := collectChunks(t, blob, chunkset.CodedChunks)

	sawReady := false
	for _, pcc := range chunks {
		outcome, err := repairer.Add(pcc)
		switch outcome {
		case Ready:
			assert.NoError(t, err)
			assert.False(t, sawReady, "ready must be reached once")
			sawReady = true
		case Rejected:
			assert.True(t, errors.Is(err, chunkset.ErrAlreadyReady))
			assert.True(t, sawReady)
		default:
			assert.NoError(t, err)
			assert.False(t, sawReady)
		}
	}
	assert.True(t, sawReady)

	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}
