package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

var (
	queryTopK       int
	queryMode       string
	queryScope      []string
	queryFilters    []string
	queryExtend     bool
	queryThumbnails int
	queryJSON       bool
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Query the indexed chunks",
	Long: `Runs a retrieval round over the indexed chunks.

Modes:
  hybrid  - fused semantic + keyword search (default)
  vector  - semantic search only
  text    - keyword search only (requires --scope)`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "n", 0, "maximum number of results")
	queryCmd.Flags().StringVar(&queryMode, "mode", "hybrid", "retrieval mode (hybrid, vector, text)")
	queryCmd.Flags().StringSliceVar(&queryScope, "scope", nil, "restrict search to these chunk ids")
	queryCmd.Flags().StringArrayVar(&queryFilters, "filter", nil,
		"metadata filter as field=value[,value...] (repeatable)")
	queryCmd.Flags().BoolVar(&queryExtend, "extend", false, "append thumbnail chunks for page context")
	queryCmd.Flags().IntVar(&queryThumbnails, "thumbnails", 0,
		"maximum thumbnail chunks to append (0 uses the configured default)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	filters, err := parseFilters(queryFilters)
	if err != nil {
		return err
	}

	opts := domain.RetrievalOptions{
		TopK:           queryTopK,
		Mode:           domain.RetrievalMode(queryMode),
		DoExtend:       queryExtend,
		ThumbnailCount: queryThumbnails,
		Scope:          queryScope,
		Filters:        filters,
	}

	results, err := retriever.Retrieve(cmd.Context(), args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputResultsJSON(cmd, results)
	}
	return outputResultsTable(cmd, results)
}

// parseFilters parses repeated field=value[,value...] flags.
func parseFilters(raw []string) ([]domain.MetadataFilter, error) {
	filters := make([]domain.MetadataFilter, 0, len(raw))
	for _, f := range raw {
		field, values, ok := strings.Cut(f, "=")
		if !ok || field == "" || values == "" {
			return nil, fmt.Errorf("bad filter %q, expected field=value[,value...]", f)
		}
		filters = append(filters, domain.MetadataFilter{
			Field:  field,
			Values: strings.Split(values, ","),
		})
	}
	return filters, nil
}

// resultOutput is the JSON output shape for one result.
type resultOutput struct {
	ID             string               `json:"id"`
	Text           string               `json:"text"`
	Score          float64              `json:"score"`
	RerankingScore *float64             `json:"reranking_score,omitempty"`
	Metadata       domain.ChunkMetadata `json:"metadata"`
}

func outputResultsJSON(cmd *cobra.Command, results []domain.RetrievedChunk) error {
	out := make([]resultOutput, len(results))
	for i, rc := range results {
		out[i] = resultOutput{
			ID:             rc.ID,
			Text:           rc.Text,
			Score:          rc.Score,
			RerankingScore: rc.RerankingScore,
			Metadata:       rc.Metadata,
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputResultsTable(cmd *cobra.Command, results []domain.RetrievedChunk) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, rc := range results {
		label := rc.Metadata.FileName
		if label == "" {
			label = rc.ID
		}

		switch {
		case rc.Metadata.Type == domain.ChunkTypeThumbnail:
			cmd.Printf("  [%d] %s (thumbnail)\n", i+1, label)
		case rc.Score == domain.KeywordScore:
			cmd.Printf("  [%d] %s (keyword match)\n", i+1, label)
		default:
			cmd.Printf("  [%d] %s (%.3f)\n", i+1, label, rc.Score)
		}

		if rc.Metadata.PageLabel != "" {
			cmd.Printf("      Page: %s\n", rc.Metadata.PageLabel)
		}
		if snippet := snippetOf(rc.Text); snippet != "" {
			cmd.Printf("      %s\n", snippet)
		}
		cmd.Println()
	}
	return nil
}

// snippetOf trims a chunk body down to one display line.
func snippetOf(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	const maxLen = 120
	if len(text) > maxLen {
		return text[:maxLen] + "..."
	}
	return text
}
