package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "recall [query]",
		Short: "Assemble a chat's narratives for a prompt",
		Long:  "Score narratives by recency and an optional query, then greedily pack them into a token budget. Output is oldest turn first.",
		Run:   runRecall,
	}

	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.Flags().IntP("budget", "b", 1000, "Max tokens in output")
	cmd.MarkFlagRequired("chat")

	narrativesCmd.AddCommand(cmd)
}

func runRecall(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	budget, _ := cmd.Flags().GetInt("budget")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	result, err := s.Recall(cmd.Context(), store.RecallParams{
		Chat:   chat,
		Query:  query,
		Budget: budget,
	})
	if err != nil {
		exitErr("recall", err)
	}
	printJSON(result)
}
