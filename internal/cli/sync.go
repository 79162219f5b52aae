package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "sync [text]",
		Short: "Merge a chat turn into the world state",
		Long:  "Parse a turn, merge it into the chat's latest state, save the new state and its narrative. Text can be a positional arg or piped via stdin.",
		Run:   runSync,
	}

	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.Flags().Int64("seq", 0, "Turn sequence (default: the turn after the stored one)")
	cmd.Flags().Bool("narrative", false, "Only print the narrative text")

	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

func runSync(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	seq, _ := cmd.Flags().GetInt64("seq")
	narrativeOnly, _ := cmd.Flags().GetBool("narrative")

	text, err := readInput(args)
	if err != nil {
		exitErr("sync", err)
	}
	if strings.TrimSpace(text) == "" {
		exitErr("sync", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	src, err := openSource()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := newService(src).Sync(cmd.Context(), s, chat, text, seq)
	if err != nil {
		exitErr("sync", err)
	}

	if narrativeOnly {
		if res.Narrative != "" {
			fmt.Println(res.Narrative)
		}
		return
	}
	if res.State != nil {
		res.State.Tree = nil
	}
	printJSON(res)
}
