// Package store reads and writes the on-disk layout of an encoded blob: a
// metadata.commit record plus one file per proof-carrying chunk, grouped
// into a directory per chunkset.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decds/decds"
	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/chunkset"
)

// MetadataFile is the name of the blob metadata record inside a blob
// directory.
const MetadataFile = "metadata.commit"

// ErrChunkFile is returned when a chunk file cannot be read or decoded.
// Callers treat it as a per-file condition and keep going.
var ErrChunkFile = errors.New("store: unreadable chunk file")

// ChunksetDir returns the directory name holding one chunkset's shares.
func ChunksetDir(id uint32) string {
	return fmt.Sprintf("chunkset.%d", id)
}

// ShareFile returns the file name of one share within a chunkset directory.
func ShareFile(shareID int) string {
	return fmt.Sprintf("share%02d.data", shareID)
}

// SharePath returns the path of one share file inside the blob directory
// dir.
func SharePath(dir string, id uint32, shareID int) string {
	return filepath.Join(dir, ChunksetDir(id), ShareFile(shareID))
}

// WriteBlob persists an encoded blob under dir, creating it if needed.
func WriteBlob(dir string, blob *decds.Blob) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create %s: %w", dir, err)
	}

	meta := blob.Metadata()
	if err := WriteMetadata(dir, meta); err != nil {
		return err
	}

	for id := uint32(0); id < meta.Chunksets; id++ {
		csDir := filepath.Join(dir, ChunksetDir(id))
		if err := os.MkdirAll(csDir, 0o755); err != nil {
			return fmt.Errorf("store: create %s: %w", csDir, err)
		}
	}

	for shareID := 0; shareID < chunkset.CodedChunks; shareID++ {
		share, err := blob.Share(shareID)
		if err != nil {
			return err
		}
		for id, pcc := range share {
			b, err := pcc.MarshalBinary()
			if err != nil {
				return fmt.Errorf("store: encode chunk %d of chunkset %d: %w", shareID, id, err)
			}
			path := SharePath(dir, uint32(id), shareID)
			if err := os.WriteFile(path, b, 0o644); err != nil {
				return fmt.Errorf("store: write %s: %w", path, err)
			}
		}
	}
	return nil
}

// WriteMetadata persists the metadata record under dir.
func WriteMetadata(dir string, meta decds.Metadata) error {
	b, err := meta.MarshalBinary()
	if err != nil {
		return fmt.Errorf("store: encode metadata: %w", err)
	}
	path := filepath.Join(dir, MetadataFile)
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", path, err)
	}
	return nil
}

// ReadMetadata loads and decodes the metadata record from dir.
func ReadMetadata(dir string) (decds.Metadata, error) {
	path := filepath.Join(dir, MetadataFile)
	b, err := os.ReadFile(path)
	if err != nil {
		return decds.Metadata{}, fmt.Errorf("store: read %s: %w", path, err)
	}

	var meta decds.Metadata
	if err := meta.UnmarshalBinary(b); err != nil {
		return decds.Metadata{}, fmt.Errorf("store: decode %s: %w", path, err)
	}
	return meta, nil
}

// ReadChunk loads and decodes a single chunk file. Failures wrap
// ErrChunkFile so callers can tolerate them per file.
func ReadChunk(path string) (*chunk.ProofCarryingChunk, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChunkFile, path, err)
	}

	var pcc chunk.ProofCarryingChunk
	if err := pcc.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrChunkFile, path, err)
	}
	return &pcc, nil
}

// ShareStatus describes the fate of one share file during a walk.
type ShareStatus int

const (
	// ShareMissing means the file does not exist.
	ShareMissing ShareStatus = iota
	// ShareUnreadable means the file exists but could not be decoded.
	ShareUnreadable
	// ShareRead means the chunk was decoded and handed to the callback.
	ShareRead
)

// WalkShares visits every share slot of the blob in (chunkset, share)
// order, decoding chunk files where present. The callback receives the
// decoded chunk for ShareRead and nil otherwise. Returning false stops the
// walk of the current chunkset and moves to the next.
func WalkShares(dir string, meta decds.Metadata, fn func(id uint32, shareID int, status ShareStatus, pcc *chunk.ProofCarryingChunk) bool) {
	for id := uint32(0); id < meta.Chunksets; id++ {
		for shareID := 0; shareID < chunkset.CodedChunks; shareID++ {
			path := SharePath(dir, id, shareID)

			var status ShareStatus
			var pcc *chunk.ProofCarryingChunk
			if _, err := os.Stat(path); err != nil {
				status = ShareMissing
			} else if pcc, err = ReadChunk(path); err != nil {
				status, pcc = ShareUnreadable, nil
			} else {
				status = ShareRead
			}

			if !fn(id, shareID, status, pcc) {
				break
			}
		}
	}
}
