package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-gateway/internal/config"
	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/mux"
)

var (
	flagReplayCols     int
	flagReplayRows     int
	flagReplayBatch    int
	flagReplayCommands bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Run a recorded control-mode stream through the engine",
	Long: `Feed a control-mode transcript (recorded with attach --record, or "-" for
stdin) through the full gateway engine without a tmux server, then print
the resulting tabs, panes, geometry and plain-text pane contents as JSON.

The engine ticks after every --batch lines, so notifications that tmux
delivered together can be grouped the same way.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, closer, err := newLogger(cfg, false)
		if err != nil {
			return err
		}
		defer closer.Close()

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open transcript: %w", err)
			}
			defer f.Close()
			in = f
		}

		cfg.TmuxEnabled = true
		result, err := runReplay(cmd.Context(), in, replayOptions{
			Cols:   flagReplayCols,
			Rows:   flagReplayRows,
			Batch:  flagReplayBatch,
			Logger: logger,
		}, cfg)
		if err != nil {
			return err
		}
		if !flagReplayCommands {
			result.Commands = nil
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	replayCmd.Flags().IntVar(&flagReplayCols, "cols", 80, "client width in cells")
	replayCmd.Flags().IntVar(&flagReplayRows, "rows", 24, "client height in cells")
	replayCmd.Flags().IntVar(&flagReplayBatch, "batch", 1, "lines fed per engine tick")
	replayCmd.Flags().BoolVar(&flagReplayCommands, "commands", false, "include the tmux commands the engine wrote")
	rootCmd.AddCommand(replayCmd)
}

type replayOptions struct {
	Cols, Rows int
	// Batch is the number of lines fed per tick.
	Batch  int
	Logger *slog.Logger
}

type replayResult struct {
	model.StateSnapshot
	Lines    int      `json:"lines"`
	Ticks    int      `json:"ticks"`
	Commands []string `json:"commands,omitempty"`
}

// commandLog is a CommandWriter that keeps what the engine sent.
type commandLog struct {
	cmds []string
}

func (c *commandLog) WriteCommand(cmd string) error {
	c.cmds = append(c.cmds, cmd)
	return nil
}

// maxSettleTicks bounds the ticks run after the transcript ends.
const maxSettleTicks = 8

// runReplay feeds a transcript to a fresh engine the way the control
// client does and returns the final model.
func runReplay(ctx context.Context, in io.Reader, opts replayOptions, cfg *config.Config) (*replayResult, error) {
	batch := max(opts.Batch, 1)
	rec := &commandLog{}
	eng := newEngine(cfg, rec, nil, opts.Logger, nil)
	eng.bounds.setContent(opts.Cols, opts.Rows)

	feeder := &mux.LineFeeder{Term: eng.term}
	scanner := mux.NewLineScanner(in)
	res := &replayResult{}
	for scanner.Scan() {
		if err := feeder.FeedLine(scanner.Text()); err != nil {
			return nil, err
		}
		res.Lines++
		if res.Lines%batch == 0 {
			eng.poller.Tick(ctx)
			res.Ticks++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}

	for i := 0; i < maxSettleTicks; i++ {
		res.Ticks++
		if !eng.poller.Tick(ctx) && eng.poller.State().PendingLayouts() == 0 {
			break
		}
	}

	res.StateSnapshot = eng.poller.Snapshot(true)
	res.Commands = rec.cmds
	return res, nil
}
