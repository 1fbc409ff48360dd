package main

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"lukechampine.com/frand"

	"github.com/decds/decds"
	"github.com/decds/decds/internal/store"
)

func newBreakCommand() *cobra.Command {
	var blobPath string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "break",
		Short: "split a blob into erasure-coded proof-carrying chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if outputDir == "" {
				outputDir = cfg.Output
			}
			return runBreak(blobPath, outputDir, cfg)
		},
	}

	cmd.Flags().StringVarP(&blobPath, "blob", "b", "", "path of the source data blob")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "target directory for chunks")
	cmd.MarkFlagRequired("blob")

	return cmd
}

func runBreak(blobPath, outputDir string, cfg fileConfig) error {
	data, err := os.ReadFile(blobPath)
	if err != nil {
		return err
	}

	fmt.Printf("Read %s\n", blobPath)
	fmt.Printf("Size %s\n", humanize.IBytes(uint64(len(data))))

	seed := cfg.Seed
	if seed == 0 {
		seed = binary.LittleEndian.Uint64(frand.Bytes(8))
	}

	blob, err := decds.Break(data, decds.Options{
		Seed:    seed,
		Workers: cfg.Workers,
		Logger:  newLogger(),
	})
	if err != nil {
		return err
	}

	meta := blob.Metadata()
	fmt.Printf("BLAKE3 digest:        %s\n", meta.BlobDigest)
	fmt.Printf("Blob root commitment: %s\n", meta.Root)
	fmt.Printf("Number of chunksets:  %d\n", meta.Chunksets)
	fmt.Printf("Number of chunks:     %d\n", meta.NumChunks())

	targetDir := pickTargetDir(blobPath, outputDir)

	// Coded chunks hold 1.6x the padded blob plus proof overhead.
	need := meta.PaddedLength() * 17 / 10
	if err := ensureSpaceFor(targetDir, need); err != nil {
		return err
	}

	fmt.Println("Writing blob metadata and erasure-coded chunks...")
	if err := store.WriteBlob(targetDir, blob); err != nil {
		return err
	}

	fmt.Printf("Erasure-coded chunks placed in %s\n", targetDir)
	return nil
}

// pickTargetDir resolves the output directory: the requested one when free,
// otherwise a random-suffixed sibling so an existing directory is never
// mixed into.
func pickTargetDir(blobPath, requested string) string {
	base := requested
	if base == "" {
		base = filepath.Base(blobPath)
	}
	if _, err := os.Stat(base); os.IsNotExist(err) && requested != "" {
		return base
	}
	return fmt.Sprintf("%s-%s", base, hex.EncodeToString(frand.Bytes(4)))
}

// ensureSpaceFor checks free space on the closest existing ancestor of dir.
func ensureSpaceFor(dir string, need uint64) error {
	probe := dir
	for {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		probe = parent
	}
	return store.EnsureFreeSpace(probe, need)
}
