package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/worldstate/internal/config"
)

func init() {
	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Sync a stream of turns from stdin",
		Long: `Read turns from stdin, separated by a delimiter line, and sync each one as the next
turn of the chat. Schema and template files are watched and reloaded between turns.
One JSON line is printed per turn.`,
		Run: runFollow,
	}

	cmd.Flags().StringP("chat", "c", "", "Chat id (required)")
	cmd.Flags().String("delimiter", "---", "Line that ends a turn")

	cmd.MarkFlagRequired("chat")

	RootCmd.AddCommand(cmd)
}

type followLine struct {
	Seq       int64    `json:"seq"`
	Version   int      `json:"version,omitempty"`
	Narrative string   `json:"narrative,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
	Rejected  bool     `json:"rejected,omitempty"`
}

func runFollow(cmd *cobra.Command, args []string) {
	chat, _ := cmd.Flags().GetString("chat")
	delimiter, _ := cmd.Flags().GetString("delimiter")

	src, err := openSource()
	if err != nil {
		exitErr("load config", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := newService(src)
	enc := json.NewEncoder(os.Stdout)
	turns := make(chan string)

	// The reader is not part of the group: a blocked stdin read cannot be
	// interrupted, and it must not hold up shutdown.
	go func() {
		defer close(turns)
		if err := readTurns(ctx, os.Stdin, delimiter, turns); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("read turns", zap.Error(err))
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(watchCtx)

	g.Go(func() error {
		err := src.Watch(gctx)
		if errors.Is(err, config.ErrNothingToWatch) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		defer stopWatch()
		for {
			select {
			case <-gctx.Done():
				return nil
			case text, ok := <-turns:
				if !ok {
					return nil
				}
				res, err := svc.Sync(gctx, s, chat, text, 0)
				if err != nil {
					return fmt.Errorf("sync: %w", err)
				}
				line := followLine{Seq: res.Seq, Narrative: res.Narrative, Warnings: res.Warnings, Rejected: res.Rejected}
				if res.State != nil {
					line.Version = res.State.Version
				}
				if err := enc.Encode(line); err != nil {
					return fmt.Errorf("write output: %w", err)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		exitErr("follow", err)
	}
}

// readTurns sends each block of lines ended by delimiter, or by EOF, to out.
// Blank blocks are skipped.
func readTurns(ctx context.Context, r io.Reader, delimiter string, out chan<- string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var block []string
	send := func() bool {
		text := strings.TrimSpace(strings.Join(block, "\n"))
		block = block[:0]
		if text == "" {
			return true
		}
		select {
		case out <- text:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == delimiter {
			if !send() {
				return ctx.Err()
			}
			continue
		}
		block = append(block, line)
	}
	if err := sc.Err(); err != nil {
		return err
	}
	if !send() {
		return ctx.Err()
	}
	return nil
}
