package chunkset

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decds/decds/pkg/merkle"
)

func randomBlock(rng *rand.Rand) []byte {
	data := make([]byte, Size)
	rng.Read(data)
	return data
}

func TestBuildRejectsWrongSize(t *testing.T) {
	_, err := Build(0, make([]byte, Size-1), 1)
	assert.ErrorIs(t, err, ErrInvalidChunksetSize)

	_, err = Build(0, make([]byte, Size+1), 1)
	assert.ErrorIs(t, err, ErrInvalidChunksetSize)

	_, err = Build(0, nil, 1)
	assert.ErrorIs(t, err, ErrInvalidChunksetSize)
}

func TestBuildProducesVerifiableChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	cs, err := Build(3, randomBlock(rng), 42)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), cs.ID())

	for i := 0; i < CodedChunks; i++ {
		c, err := cs.Chunk(i)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), c.ChunksetID)
		assert.Equal(t, uint8(i), c.Index)
		assert.Len(t, c.Chunk.Payload, ChunkLen)
		assert.True(t, merkle.Verify(c.Chunk.Digest(), c.SetProof, cs.Root()), "chunk %d", i)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	data := randomBlock(rng)

	a, err := Build(0, data, 7)
	require.NoError(t, err)
	b, err := Build(0, data, 7)
	require.NoError(t, err)
	assert.Equal(t, a.Root(), b.Root())

	// A different seed or a different chunkset id changes the coded chunks.
	c, err := Build(0, data, 8)
	require.NoError(t, err)
	assert.NotEqual(t, a.Root(), c.Root())

	d, err := Build(1, data, 7)
	require.NoError(t, err)
	assert.NotEqual(t, a.Root(), d.Root())
}

func TestChunkOutOfBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	cs, err := Build(0, randomBlock(rng), 1)
	require.NoError(t, err)

	_, err = cs.Chunk(CodedChunks)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
	_, err = cs.Chunk(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfBounds)
}

func TestRepairFromShuffledChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	data := randomBlock(rng)

	cs, err := Build(0, data, 9)
	require.NoError(t, err)

	order := rng.Perm(CodedChunks)
	repairer := NewRepairing(0, cs.Root())

	for _, i := range order {
		if repairer.Ready() {
			break
		}
		c, err := cs.Chunk(i)
		require.NoError(t, err)

		outcome, err := repairer.Add(c)
		require.NoError(t, err)
		assert.Contains(t, []AddOutcome{Accepted, Redundant, Ready}, outcome)
	}

	require.True(t, repairer.Ready())
	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}

func TestRepairNotReady(t *testing.T) {
	rng := rand.New(rand.NewSource(5))

	cs, err := Build(0, randomBlock(rng), 1)
	require.NoError(t, err)

	repairer := NewRepairing(0, cs.Root())
	for i := 0; i < SourceChunks-1; i++ {
		c, err := cs.Chunk(i)
		require.NoError(t, err)
		_, err = repairer.Add(c)
		require.NoError(t, err)
	}

	assert.False(t, repairer.Ready())
	_, err = repairer.Repair()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAddAfterReady(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	data := randomBlock(rng)

	cs, err := Build(0, data, 2)
	require.NoError(t, err)

	repairer := NewRepairing(0, cs.Root())
	i := 0
	for !repairer.Ready() {
		c, err := cs.Chunk(i)
		require.NoError(t, err)
		_, err = repairer.Add(c)
		require.NoError(t, err)
		i++
	}

	for ; i < CodedChunks; i++ {
		c, err := cs.Chunk(i)
		require.NoError(t, err)

		outcome, err := repairer.Add(c)
		assert.Equal(t, Rejected, outcome)
		assert.ErrorIs(t, err, ErrAlreadyReady)
	}

	repaired, err := repairer.Repair()
	require.NoError(t, err)
	assert.Equal(t, data, repaired)
}

func TestAddRejectsForeignAndMalformedChunks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	cs, err := Build(0, randomBlock(rng), 3)
	require.NoError(t, err)
	repairer := NewRepairing(0, cs.Root())

	good, err := cs.Chunk(0)
	require.NoError(t, err)

	foreign := *good
	foreign.ChunksetID = 1
	outcome, err := repairer.Add(&foreign)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, ErrInvalidChunkMetadata)

	badIndex := *good
	badIndex.Index = CodedChunks
	outcome, err = repairer.Add(&badIndex)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, ErrInvalidChunkMetadata)

	short := *good
	short.Chunk.Payload = short.Chunk.Payload[:ChunkLen-1]
	outcome, err = repairer.Add(&short)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, ErrInvalidChunkMetadata)

	assert.Equal(t, 0, repairer.Rank())
}

func TestAddRejectsTamperedChunk(t *testing.T) {
	rng := rand.New(rand.NewSource(8))

	cs, err := Build(0, randomBlock(rng), 4)
	require.NoError(t, err)
	repairer := NewRepairing(0, cs.Root())

	good, err := cs.Chunk(0)
	require.NoError(t, err)

	tampered := *good
	tampered.Chunk.Payload = append([]byte(nil), good.Chunk.Payload...)
	tampered.Chunk.Payload[rng.Intn(ChunkLen)] ^= 1 << uint(rng.Intn(8))

	outcome, err := repairer.Add(&tampered)
	assert.Equal(t, Rejected, outcome)
	assert.ErrorIs(t, err, ErrInvalidProof)
	assert.Equal(t, 0, repairer.Rank())

	// The untampered chunk is still acceptable.
	outcome, err = repairer.Add(good)
	require.NoError(t, err)
	assert.Equal(t, Accepted, outcome)
	assert.Equal(t, 1, repairer.Rank())
}

func TestAddReportsRedundantChunk(t *testing.T) {
	rng := rand.New(rand.NewSource(9))

	cs, err := Build(0, randomBlock(rng), 5)
	require.NoError(t, err)
	repairer := NewRepairing(0, cs.Root())

	c, err := cs.Chunk(0)
	require.NoError(t, err)

	outcome, err := repairer.Add(c)
	require.NoError(t, err)
	assert.Equal(t, Accepted, outcome)

	outcome, err = repairer.Add(c)
	require.NoError(t, err)
	assert.Equal(t, Redundant, outcome)
	assert.Equal(t, 1, repairer.Rank())
}

func TestAddOutcomeString(t *testing.T) {
	assert.Equal(t, "accepted", Accepted.String())
	assert.Equal(t, "redundant", Redundant.String())
	assert.Equal(t, "ready", Ready.String())
	assert.Equal(t, "rejected", Rejected.String())
}

func TestCodingSeedDependsOnAllInputs(t *testing.T) {
	a := codingSeed(1, 0)
	assert.NotEqual(t, a, codingSeed(2, 0))
	assert.NotEqual(t, a, codingSeed(1, 1))
	assert.Equal(t, a, codingSeed(1, 0))
}
