package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/worldstate/internal/merge"
	"github.com/rcliao/worldstate/internal/model"
	"github.com/rcliao/worldstate/internal/parser"
	"github.com/rcliao/worldstate/internal/pipeline"
	"github.com/rcliao/worldstate/internal/store"
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a chat's world state by hand",
	Long: `Manual edits are saved as a new state version with a user-sourced narrative.
Fields set by hand are locked against AI turns until "worldstate advance".`,
}

func init() {
	setCmd := &cobra.Command{
		Use:   "set [value]",
		Short: "Set a field and lock it",
		Args:  cobra.MinimumNArgs(1),
		Run:   runEditSet,
	}
	addTargetFlags(setCmd)

	rmCmd := &cobra.Command{
		Use:   "rm",
		Short: "Remove a field, locked or not",
		Run:   runEditRm,
	}
	addTargetFlags(rmCmd)

	presenceCmd := &cobra.Command{
		Use:   "presence",
		Short: "Mark a character present or absent",
		Run:   runEditPresence,
	}
	presenceCmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	presenceCmd.Flags().String("character", "", "Character id or name (required)")
	presenceCmd.Flags().Bool("present", true, "Whether the character is in the scene")
	presenceCmd.MarkFlagRequired("chat")
	presenceCmd.MarkFlagRequired("character")

	editCmd.AddCommand(setCmd, rmCmd, presenceCmd)
	RootCmd.AddCommand(editCmd)
}

func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.Flags().String("character", "", "Character id or name (default: shared fields)")
	cmd.Flags().String("category", "", "Category (required)")
	cmd.Flags().StringP("key", "k", "", "Key (required)")
	cmd.MarkFlagRequired("chat")
	cmd.MarkFlagRequired("category")
	cmd.MarkFlagRequired("key")
}

func targetFlags(cmd *cobra.Command) (string, merge.Target) {
	chat, _ := cmd.Flags().GetString("chat")
	character, _ := cmd.Flags().GetString("character")
	category, _ := cmd.Flags().GetString("category")
	key, _ := cmd.Flags().GetString("key")
	return chat, merge.Target{Character: character, Category: category, Key: key}
}

func runEditSet(cmd *cobra.Command, args []string) {
	chat, target := targetFlags(cmd)
	value := strings.TrimSpace(strings.Join(args, " "))
	if value == model.DeletionSentinel {
		exitErr("edit set", errors.New(`use "edit rm" to delete a field`))
	}

	runEdit(cmd, chat, func(svc *pipeline.Service, p *parser.Parser) pipeline.Edit {
		return func(prev model.Tree) (model.Tree, []string, error) {
			tree, logs := svc.Engine().SetItem(prev, target, p.Values(target.Key, value))
			return tree, logs, nil
		}
	})
}

func runEditRm(cmd *cobra.Command, args []string) {
	chat, target := targetFlags(cmd)

	runEdit(cmd, chat, func(svc *pipeline.Service, _ *parser.Parser) pipeline.Edit {
		return func(prev model.Tree) (model.Tree, []string, error) {
			tree, ok := svc.Engine().DeleteItem(prev, target)
			if !ok {
				return prev, nil, fmt.Errorf("field %s: %w", target, store.ErrNotFound)
			}
			return tree, []string{fmt.Sprintf("user deleted %s", target)}, nil
		}
	})
}

func runEditPresence(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	character, _ := cmd.Flags().GetString("character")
	present, _ := cmd.Flags().GetBool("present")

	runEdit(cmd, chat, func(svc *pipeline.Service, _ *parser.Parser) pipeline.Edit {
		return func(prev model.Tree) (model.Tree, []string, error) {
			tree := svc.Engine().SetPresence(prev, character, present)
			return tree, []string{fmt.Sprintf("user set presence of %q to %t", character, present)}, nil
		}
	})
}

// runEdit loads the config and store, applies the edit built by mk and
// prints the result.
func runEdit(cmd *cobra.Command, chat string, mk func(*pipeline.Service, *parser.Parser) pipeline.Edit) {
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
	p := parser.New(src.Current().Registry)
	res, err := svc.Apply(cmd.Context(), s, chat, mk(svc, p))
	if err != nil {
		exitErr(cmd.CommandPath(), err)
	}
	if res.State != nil {
		res.State.Tree = nil
	}
	printJSON(res)
}
