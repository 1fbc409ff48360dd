// Package rlnc implements random linear network coding over GF(2^8). An
// Encoder turns k equally sized source pieces into an unbounded stream of
// coded pieces, each a random linear combination of the sources tagged with
// its coefficient vector. A Decoder accepts coded pieces in any order,
// discards linearly dependent ones, and inverts the system once it has
// gathered k independent combinations.
package rlnc

import (
	"errors"
	"io"
)

var (
	// ErrZeroPieces is returned when an encoder or decoder is constructed
	// for zero pieces.
	ErrZeroPieces = errors.New("rlnc: piece count must be positive")
	// ErrUnevenData is returned when the source data cannot be split into
	// equally sized pieces.
	ErrUnevenData = errors.New("rlnc: data length not divisible by piece count")
	// ErrWrongVectorLength is returned when a coded piece carries a
	// coefficient vector of unexpected length.
	ErrWrongVectorLength = errors.New("rlnc: wrong coefficient vector length")
	// ErrWrongPieceLength is returned when a coded piece's payload length
	// does not match the decoder's piece length.
	ErrWrongPieceLength = errors.New("rlnc: wrong piece length")
	// ErrNotReady is returned when decoding is attempted below full rank.
	ErrNotReady = errors.New("rlnc: not enough independent pieces")
)

// Encoder holds the source pieces of one coding generation.
type Encoder struct {
	pieces   [][]byte
	pieceLen int
}

// NewEncoder splits data into pieceCount equally sized source pieces. The
// data slice is not copied; it must stay untouched for the encoder's
// lifetime.
func NewEncoder(data []byte, pieceCount int) (*Encoder, error) {
	if pieceCount <= 0 {
		return nil, ErrZeroPieces
	}
	if len(data) == 0 || len(data)%pieceCount != 0 {
		return nil, ErrUnevenData
	}

	pieceLen := len(data) / pieceCount
	pieces := make([][]byte, pieceCount)
	for i := range pieces {
		pieces[i] = data[i*pieceLen : (i+1)*pieceLen]
	}

	return &Encoder{pieces: pieces, pieceLen: pieceLen}, nil
}

// PieceCount returns the number of source pieces.
func (e *Encoder) PieceCount() int {
	return len(e.pieces)
}

// PieceLen returns the length of each source piece in bytes.
func (e *Encoder) PieceLen() int {
	return e.pieceLen
}

// CodedPiece draws one coefficient per source piece from rng and returns the
// vector together with the corresponding linear combination of the sources.
// A deterministic rng yields a deterministic piece stream.
func (e *Encoder) CodedPiece(rng io.Reader) (vector []byte, piece []byte, err error) {
	vector = make([]byte, len(e.pieces))
	if _, err := io.ReadFull(rng, vector); err != nil {
		return nil, nil, err
	}

	piece = make([]byte, e.pieceLen)
	for i, c := range vector {
		mulAddSlice(piece, e.pieces[i], c)
	}
	return vector, piece, nil
}
