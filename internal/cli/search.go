package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search narratives by keyword",
		Long:  "Search narrative text for a substring. ASCII letters match case-insensitively.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("chat", "c", "", "Filter by chat")
	cmd.Flags().IntP("limit", "l", 20, "Max results")

	narrativesCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	limit, _ := cmd.Flags().GetInt("limit")
	query := strings.Join(args, " ")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := s.Search(cmd.Context(), store.SearchParams{
		Chat:  chat,
		Query: query,
		Limit: limit,
	})
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(results)
}
