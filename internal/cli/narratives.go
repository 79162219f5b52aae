package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/store"
)

var narrativesCmd = &cobra.Command{
	Use:     "narratives",
	Aliases: []string{"memories"},
	Short:   "Read a chat's narrative memories",
}

func init() {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List narratives (newest first)",
		Run:   runNarrativesList,
	}

	listCmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	listCmd.Flags().IntP("limit", "l", 20, "Max results")
	listCmd.Flags().Bool("text", false, "Print narrative text only, oldest first")
	listCmd.MarkFlagRequired("chat")

	narrativesCmd.AddCommand(listCmd)
	RootCmd.AddCommand(narrativesCmd)
}

func runNarrativesList(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	limit, _ := cmd.Flags().GetInt("limit")
	textOnly, _ := cmd.Flags().GetBool("text")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	narratives, err := s.ListNarratives(cmd.Context(), store.ListParams{Chat: chat, Limit: limit})
	if err != nil {
		exitErr("list narratives", err)
	}

	if textOnly {
		for i := len(narratives) - 1; i >= 0; i-- {
			fmt.Printf("[turn %d]\n%s\n", narratives[i].Seq, narratives[i].Content)
		}
		return
	}
	if narratives == nil {
		narratives = []model.Narrative{}
	}
	printJSON(narratives)
}
