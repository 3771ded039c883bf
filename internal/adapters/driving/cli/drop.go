package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var dropForce bool

var dropCmd = &cobra.Command{
	Use:   "drop",
	Short: "Destroy the entire index",
	Long: `Drops all indexed chunks from the stores. This is irreversible.
Prompts for confirmation unless --force is given.`,
	RunE: runDrop,
}

func init() {
	dropCmd.Flags().BoolVarP(&dropForce, "force", "f", false, "skip confirmation")
	rootCmd.AddCommand(dropCmd)
}

func runDrop(cmd *cobra.Command, _ []string) error {
	if err := ensureServices(cmd.Context()); err != nil {
		return err
	}

	if !dropForce {
		cmd.Print("This destroys the entire index. Type 'yes' to continue: ")
		reader := bufio.NewReader(cmd.InOrStdin())
		input, _ := reader.ReadString('\n')
		if strings.TrimSpace(input) != "yes" {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := vectorStore.Drop(cmd.Context()); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}

	cmd.Println("Index dropped.")
	return nil
}
