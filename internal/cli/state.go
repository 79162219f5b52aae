package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/store"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect stored world state",
}

func init() {
	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print a chat's world-state tree",
		Run:   runStateShow,
	}
	showCmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	showCmd.Flags().IntP("version", "v", 0, "Specific version number (default: latest)")
	showCmd.MarkFlagRequired("chat")

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List a chat's state versions (newest first)",
		Run:   runStateHistory,
	}
	historyCmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	historyCmd.Flags().IntP("limit", "l", 20, "Max results")
	historyCmd.MarkFlagRequired("chat")

	stateCmd.AddCommand(showCmd, historyCmd)
	RootCmd.AddCommand(stateCmd)
}

func runStateShow(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	version, _ := cmd.Flags().GetInt("version")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	st, err := s.LoadState(cmd.Context(), store.GetStateParams{Chat: chat, Version: version})
	if err != nil {
		exitErr("state show", err)
	}
	printJSON(st)
}

func runStateHistory(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	versions, err := s.StateHistory(cmd.Context(), chat, limit)
	if err != nil {
		exitErr("state history", err)
	}
	if versions == nil {
		versions = []model.StateVersion{}
	}
	printJSON(versions)
}
