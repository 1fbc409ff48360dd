// Package decds turns arbitrary data blobs into proof-carrying chunks:
// independently transportable, self-authenticating units from which the blob
// can be reconstructed even when a bounded fraction of the chunks are lost
// or corrupted.
//
// A blob is zero-padded to a multiple of 10 MiB and split into chunksets.
// Each chunkset is expanded into 16 coded chunks by random linear network
// coding over GF(2^8); any 10 linearly independent coded chunks recover the
// chunkset. Two Merkle trees commit to the result: one per chunkset over its
// 16 chunk digests, and one blob-level tree over the ordered chunkset roots.
// Every chunk carries both inclusion proofs, so a single 32-byte blob root
// authenticates every chunk in the system.
//
// Break builds chunks from a blob; RepairingBlob consumes an unordered,
// possibly adversarial stream of chunks and reproduces the original bytes.
package decds

import (
	"context"
	"errors"
	"log/slog"

	"github.com/decds/decds/pkg/chunkset"
)

// AddOutcome reports how a repairer handled a submitted chunk.
type AddOutcome = chunkset.AddOutcome

// Re-exported outcomes; see the chunkset package.
const (
	Accepted  = chunkset.Accepted
	Redundant = chunkset.Redundant
	Ready     = chunkset.Ready
	Rejected  = chunkset.Rejected
)

var (
	// ErrEmptyInput is returned when a blob is built from zero bytes.
	ErrEmptyInput = errors.New("decds: empty blob")
	// ErrInvalidChunksetID is returned on chunkset lookups past the blob's
	// extent.
	ErrInvalidChunksetID = errors.New("decds: invalid chunkset id")
	// ErrInvalidShareID is returned on share lookups past the coded chunk
	// count.
	ErrInvalidShareID = errors.New("decds: invalid share id")
	// ErrMalformedMetadata is returned when a metadata record cannot be
	// decoded.
	ErrMalformedMetadata = errors.New("decds: malformed metadata")
	// ErrNotReady is returned when blob repair is attempted while some
	// chunkset is below full rank.
	ErrNotReady = errors.New("decds: blob not ready to repair")
	// ErrDigestMismatch is returned when the repaired bytes do not hash to
	// the digest recorded at build time.
	ErrDigestMismatch = errors.New("decds: repaired blob digest mismatch")
)

// Options configures blob building and repair.
type Options struct {
	// Seed keys the coding RNG. The blob root is a pure function of the
	// blob bytes and this seed.
	Seed uint64
	// Workers bounds the chunkset-level parallelism. Zero or negative
	// defaults to the number of CPUs.
	Workers int
	// Logger receives progress events. Nil discards them.
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(discardHandler{})
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
