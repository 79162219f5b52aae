package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/parser"
)

func init() {
	cmd := &cobra.Command{
		Use:   "parse [text]",
		Short: "Parse tags from a turn without touching any state",
		Long:  "Print the records and directives found in a turn. Text can be a positional arg or piped via stdin.",
		Run:   runParse,
	}

	cmd.Flags().Int64("seq", 0, "Turn sequence to stamp on records")

	RootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) {
	seq, _ := cmd.Flags().GetInt64("seq")

	text, err := readInput(args)
	if err != nil {
		exitErr("parse", err)
	}

	src, err := openSource()
	if err != nil {
		exitErr("load config", err)
	}

	printJSON(parser.Parse(text, src.Current().Registry, seq))
}
