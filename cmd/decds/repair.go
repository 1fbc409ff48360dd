package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/decds/decds"
	"github.com/decds/decds/internal/store"
	"github.com/decds/decds/pkg/chunk"
	"github.com/decds/decds/pkg/hashing"
)

// RepairedFile is the name of the reconstructed blob inside the output
// directory.
const RepairedFile = "repaired.data"

func newRepairCommand() *cobra.Command {
	var chunkDir string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "repair",
		Short: "reconstruct the original blob from proof-carrying chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Output
			}
			return runRepair(chunkDir, outputDir, cfg)
		},
	}

	cmd.Flags().StringVarP(&chunkDir, "chunks", "c", "", "directory of proof-carrying chunks")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "target directory for the repaired blob")
	cmd.MarkFlagRequired("chunks")

	return cmd
}

func runRepair(chunkDir, outputDir string, cfg fileConfig) error {
	meta, err := store.ReadMetadata(chunkDir)
	if err != nil {
		return err
	}

	fmt.Printf("Original blob size:   %s\n", humanize.IBytes(meta.Length))
	fmt.Printf("BLAKE3 digest:        %s\n", meta.BlobDigest)
	fmt.Printf("Blob root commitment: %s\n", meta.Root)
	fmt.Printf("Number of chunksets:  %d\n", meta.Chunksets)

	repairer := decds.NewRepairingBlob(meta, decds.Options{
		Workers: cfg.Workers,
		Logger:  newLogger(),
	})

	// Bad chunks are dropped and counted; only an unrecoverable chunkset
	// is fatal, after the whole directory has been tried.
	dropped := 0
	store.WalkShares(chunkDir, meta, func(id uint32, shareID int, status store.ShareStatus, pcc *chunk.ProofCarryingChunk) bool {
		if ready, _ := repairer.ChunksetReady(id); ready {
			return false
		}
		if status != store.ShareRead {
			if status == store.ShareUnreadable {
				dropped++
			}
			return true
		}
		if outcome, _ := repairer.Add(pcc); outcome == decds.Rejected {
			dropped++
		}
		return true
	})

	if dropped > 0 {
		fmt.Printf("Dropped %d unusable chunk files\n", dropped)
	}

	if missing := repairer.MissingChunksets(); len(missing) > 0 {
		return fmt.Errorf("not enough valid chunks to repair chunksets %v", missing)
	}

	data, err := repairer.Repair()
	if err != nil {
		return err
	}

	targetDir := pickTargetDir(chunkDir, outputDir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return err
	}

	path := filepath.Join(targetDir, RepairedFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}

	fmt.Printf("Repaired blob BLAKE3 digest: %s\n", hashing.Sum(data))
	fmt.Printf("Repaired blob written to %s\n", path)
	return nil
}
