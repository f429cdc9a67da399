package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/go-admissions/rag"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve passages relevant to a question",
	Long: `Embeds the question and prints the most similar passages from the
ingested documents, most similar first.`,
	Args: cobra.ExactArgs(1),
	RunE: withService(runQuery),
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question with the admission assistant",
	Long: `Retrieves context from the ingested documents and asks the configured
language model. Without a model the retrieved context is printed instead.`,
	Args: cobra.ExactArgs(1),
	RunE: withService(runAsk),
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", rag.DefaultTopK, "maximum number of passages")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output passages as JSON")
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(askCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	passages, err := service.Retrieve(context.Background(), args[0], queryTopK)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(passages, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal passages: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(passages) == 0 {
		cmd.Println(rag.NoRelevantInformation)
		return nil
	}

	for i, p := range passages {
		cmd.Printf("  [%d] %s (%.3f)\n", i+1, p.ChunkID, p.Similarity)
		cmd.Printf("      %s\n", p.Content)
		cmd.Println()
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ans, err := service.Ask(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	cmd.Println(ans.Text)
	return nil
}
