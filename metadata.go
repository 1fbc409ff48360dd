package decds

import (
	"encoding/binary"
	"fmt"

	"github.com/decds/decds/pkg/chunkset"
	"github.com/decds/decds/pkg/hashing"
)

// MetadataVersion is the current metadata record format version.
const MetadataVersion = 1

// metadataWireLen is the encoded record size: root, length, chunkset count,
// version, blob digest.
const metadataWireLen = hashing.Size + 8 + 4 + 1 + hashing.Size

// Metadata is the blob's source of truth: everything a repairer needs to
// verify incoming chunks and to size and check its output.
type Metadata struct {
	// Version is the record format version.
	Version uint8
	// Root is the blob-level Merkle root, the system's sole cryptographic
	// commitment.
	Root hashing.Digest
	// BlobDigest is the BLAKE3 digest of the original blob bytes, checked
	// against the repaired output.
	BlobDigest hashing.Digest
	// Length is the original blob length in bytes, before zero padding.
	Length uint64
	// Chunksets is the number of chunksets the padded blob was split into.
	Chunksets uint32
}

// NumChunks returns the total coded chunk count across all chunksets.
func (m Metadata) NumChunks() int {
	return int(m.Chunksets) * chunkset.CodedChunks
}

// PaddedLength returns the blob length after zero padding.
func (m Metadata) PaddedLength() uint64 {
	return uint64(m.Chunksets) * chunkset.Size
}

// ChunksetExtent returns the byte range [from, to) the chunkset covers in
// the original blob. For the final chunkset, to is clipped to the blob
// length, excluding padding.
func (m Metadata) ChunksetExtent(id uint32) (from, to uint64, err error) {
	if id >= m.Chunksets {
		return 0, 0, fmt.Errorf("%w: %d of %d", ErrInvalidChunksetID, id, m.Chunksets)
	}
	from = uint64(id) * chunkset.Size
	to = from + chunkset.Size
	if to > m.Length {
		to = m.Length
	}
	return from, to, nil
}

// ChunksetsForRange returns the ids of every chunkset overlapping the byte
// range [from, to) of the original blob.
func (m Metadata) ChunksetsForRange(from, to uint64) ([]uint32, error) {
	if from >= to || to > m.Length {
		return nil, fmt.Errorf("%w: range [%d, %d) of %d-byte blob", ErrInvalidChunksetID, from, to, m.Length)
	}

	first := uint32(from / chunkset.Size)
	last := uint32((to - 1) / chunkset.Size)
	ids := make([]uint32, 0, last-first+1)
	for id := first; id <= last; id++ {
		ids = append(ids, id)
	}
	return ids, nil
}

// MarshalBinary encodes the metadata record. All integers little-endian.
func (m Metadata) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, metadataWireLen)
	buf = append(buf, m.Root[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, m.Length)
	buf = binary.LittleEndian.AppendUint32(buf, m.Chunksets)
	buf = append(buf, m.Version)
	buf = append(buf, m.BlobDigest[:]...)
	return buf, nil
}

// UnmarshalBinary decodes a metadata record, rejecting wrong-sized input,
// unknown versions and records whose chunkset count is not exactly the
// number of chunksets the blob length needs.
func (m *Metadata) UnmarshalBinary(b []byte) error {
	if len(b) != metadataWireLen {
		return fmt.Errorf("%w: %d bytes, expected %d", ErrMalformedMetadata, len(b), metadataWireLen)
	}

	copy(m.Root[:], b)
	b = b[hashing.Size:]
	m.Length = binary.LittleEndian.Uint64(b)
	m.Chunksets = binary.LittleEndian.Uint32(b[8:])
	m.Version = b[12]
	copy(m.BlobDigest[:], b[13:])

	if m.Version != MetadataVersion {
		return fmt.Errorf("%w: unknown version %d", ErrMalformedMetadata, m.Version)
	}
	if m.Chunksets == 0 {
		return fmt.Errorf("%w: zero chunksets", ErrMalformedMetadata)
	}
	if need := chunksetCount(m.Length); need != m.Chunksets {
		return fmt.Errorf("%w: %d chunksets do not match a %d-byte blob", ErrMalformedMetadata, m.Chunksets, m.Length)
	}
	return nil
}

func chunksetCount(length uint64) uint32 {
	return uint32((length + chunkset.Size - 1) / chunkset.Size)
}
