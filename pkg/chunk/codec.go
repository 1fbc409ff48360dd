package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/decds/decds/pkg/hashing"
	"github.com/decds/decds/pkg/merkle"
)

// ErrMalformedChunk is returned when chunk bytes cannot be decoded.
var ErrMalformedChunk = errors.New("chunk: malformed chunk bytes")

const (
	headerLen     = 4 + 1 // chunkset id + chunk index
	proofFixedLen = 4 + 4 + 2

	// maxProofPath bounds the path length accepted during decoding. A u32
	// leaf count can never need more than 32 siblings.
	maxProofPath = 32
)

// MarshalBinary encodes the chunk in the stable wire format: chunkset id,
// chunk index, coefficient vector, payload, chunkset proof, blob proof. All
// integers little-endian.
func (p *ProofCarryingChunk) MarshalBinary() ([]byte, error) {
	if len(p.Chunk.Payload) != PayloadLen {
		return nil, fmt.Errorf("%w: payload is %d bytes, expected %d", ErrMalformedChunk, len(p.Chunk.Payload), PayloadLen)
	}

	buf := make([]byte, 0, headerLen+VectorLen+PayloadLen+proofWireLen(p.SetProof)+proofWireLen(p.BlobProof))
	buf = binary.LittleEndian.AppendUint32(buf, p.ChunksetID)
	buf = append(buf, p.Index)
	buf = append(buf, p.Chunk.Vector[:]...)
	buf = append(buf, p.Chunk.Payload...)
	buf = appendProof(buf, p.SetProof)
	buf = appendProof(buf, p.BlobProof)
	return buf, nil
}

// UnmarshalBinary decodes a chunk from its wire format. Any length mismatch,
// including trailing bytes, fails with ErrMalformedChunk.
func (p *ProofCarryingChunk) UnmarshalBinary(b []byte) error {
	if len(b) < headerLen+VectorLen+PayloadLen {
		return fmt.Errorf("%w: %d bytes is shorter than the fixed sections", ErrMalformedChunk, len(b))
	}

	p.ChunksetID = binary.LittleEndian.Uint32(b)
	p.Index = b[4]
	b = b[headerLen:]

	copy(p.Chunk.Vector[:], b[:VectorLen])
	b = b[VectorLen:]

	p.Chunk.Payload = make([]byte, PayloadLen)
	copy(p.Chunk.Payload, b[:PayloadLen])
	b = b[PayloadLen:]

	var err error
	if p.SetProof, b, err = consumeProof(b); err != nil {
		return err
	}
	if p.BlobProof, b, err = consumeProof(b); err != nil {
		return err
	}
	if len(b) != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformedChunk, len(b))
	}
	return nil
}

func proofWireLen(p merkle.Proof) int {
	return proofFixedLen + hashing.Size*len(p.Path)
}

func appendProof(buf []byte, p merkle.Proof) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, p.LeafIndex)
	buf = binary.LittleEndian.AppendUint32(buf, p.LeafCount)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(p.Path)))
	for _, d := range p.Path {
		buf = append(buf, d[:]...)
	}
	return buf
}

func consumeProof(b []byte) (merkle.Proof, []byte, error) {
	if len(b) < proofFixedLen {
		return merkle.Proof{}, nil, fmt.Errorf("%w: truncated proof header", ErrMalformedChunk)
	}

	p := merkle.Proof{
		LeafIndex: binary.LittleEndian.Uint32(b),
		LeafCount: binary.LittleEndian.Uint32(b[4:]),
	}
	pathLen := int(binary.LittleEndian.Uint16(b[8:]))
	b = b[proofFixedLen:]

	if pathLen > maxProofPath {
		return merkle.Proof{}, nil, fmt.Errorf("%w: proof path of %d siblings", ErrMalformedChunk, pathLen)
	}
	if len(b) < pathLen*hashing.Size {
		return merkle.Proof{}, nil, fmt.Errorf("%w: truncated proof path", ErrMalformedChunk)
	}

	p.Path = make([]hashing.Digest, pathLen)
	for i := range p.Path {
		copy(p.Path[i][:], b[i*hashing.Size:])
	}
	return p, b[pathLen*hashing.Size:], nil
}
