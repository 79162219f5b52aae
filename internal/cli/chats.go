package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List chats with saved state",
		Run:   runChats,
	}

	RootCmd.AddCommand(cmd)
}

func runChats(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	chats, err := s.ListChats(cmd.Context())
	if err != nil {
		exitErr("list chats", err)
	}
	if chats == nil {
		chats = []store.ChatSummary{}
	}
	printJSON(chats)
}
