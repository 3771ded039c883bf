package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

var indexCmd = &cobra.Command{
	Use:   "index [file]",
	Short: "Index document chunks from a JSON file",
	Long: `Reads a JSON array of chunks and upserts them into the stores.
Chunks without an embedding are embedded by the configured provider.
Pass "-" (or no file) to read from standard input.

Each chunk is an object with "text", optional "id", "embedding", and
"metadata" fields. Missing ids are assigned.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)
}

// chunkInput is the accepted wire format for one chunk.
type chunkInput struct {
	ID        string               `json:"id"`
	Text      string               `json:"text"`
	Embedding []float32            `json:"embedding,omitempty"`
	Metadata  domain.ChunkMetadata `json:"metadata"`
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	var reader io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		reader = f
	}

	var inputs []chunkInput
	if err := json.NewDecoder(reader).Decode(&inputs); err != nil {
		return fmt.Errorf("decoding chunks: %w", err)
	}
	if len(inputs) == 0 {
		cmd.Println("No chunks to index.")
		return nil
	}

	chunks := make([]domain.Chunk, len(inputs))
	for i, in := range inputs {
		id := in.ID
		if id == "" {
			id = uuid.NewString()
		}
		chunks[i] = domain.Chunk{
			ID:        id,
			Text:      in.Text,
			Embedding: in.Embedding,
			Metadata:  in.Metadata,
		}
	}

	if err := indexer.Index(cmd.Context(), chunks); err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	cmd.Printf("Indexed %d chunks.\n", len(chunks))
	return nil
}
