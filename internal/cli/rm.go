package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a chat's states and narratives (irreversible)",
		Run:   runRm,
	}

	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if err := s.DeleteChat(cmd.Context(), chat); err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"chat":%q}`+"\n", chat)
}
