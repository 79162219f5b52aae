package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Release every user lock so AI turns may write those fields again",
		Run:   runAdvance,
	}

	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

func runAdvance(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")

	src, err := openSource()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	svc := newService(src)
	res, err := svc.Apply(cmd.Context(), s, chat, func(prev model.Tree) (model.Tree, []string, error) {
		tree, n := svc.Engine().AdvanceTurn(prev)
		return tree, []string{fmt.Sprintf("unlocked %d fields", n)}, nil
	})
	if err != nil {
		exitErr("advance", err)
	}
	if res.State != nil {
		res.State.Tree = nil
	}
	printJSON(res)
}
