package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"

	"github.com/decds/decds/internal/store"
	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/chunkset"
)

func newVerifyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <dir>",
		Short: "validate the inclusion proofs of every chunk in a blob directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0])
		},
	}
}

func runVerify(dir string) error {
	meta, err := store.ReadMetadata(dir)
	if err != nil {
		return err
	}

	fmt.Printf("Original blob size:   %s\n", humanize.IBytes(meta.Length))
	fmt.Printf("BLAKE3 digest:        %s\n", meta.BlobDigest)
	fmt.Printf("Blob root commitment: %s\n", meta.Root)
	fmt.Printf("Number of chunksets:  %d\n", meta.Chunksets)
	fmt.Printf("Number of chunks:     %d\n\n", meta.NumChunks())

	type row struct {
		valid, missing, corrupt, invalid int
	}
	rows := make([]row, meta.Chunksets)

	store.WalkShares(dir, meta, func(id uint32, shareID int, status store.ShareStatus, pcc *chunk.ProofCarryingChunk) bool {
		r := &rows[id]
		switch status {
		case store.ShareMissing:
			r.missing++
		case store.ShareUnreadable:
			r.corrupt++
		case store.ShareRead:
			if pcc.ChunksetID == id && int(pcc.Index) == shareID && pcc.Verify(meta.Root) {
				r.valid++
			} else {
				r.invalid++
			}
		}
		return true
	})

	tbl := table.New("Chunkset", "Valid", "Missing", "Corrupt", "Invalid")
	totalValid := 0
	for id, r := range rows {
		tbl.AddRow(store.ChunksetDir(uint32(id)), fmt.Sprintf("%d/%d", r.valid, chunkset.CodedChunks), r.missing, r.corrupt, r.invalid)
		totalValid += r.valid
	}
	tbl.Print()

	fmt.Printf("\nFound %d/%d valid chunks in %s.\n", totalValid, meta.NumChunks(), dir)
	if totalValid != meta.NumChunks() {
		return fmt.Errorf("%d chunks missing or invalid", meta.NumChunks()-totalValid)
	}
	return nil
}
