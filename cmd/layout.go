package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-gateway/internal/layout"
	"github.com/timvw/pane-gateway/internal/model"
)

var (
	flagLayoutSession string
	flagLayoutJSON    bool
)

var layoutCmd = &cobra.Command{
	Use:   "layout [layout-string]",
	Short: "Parse and explain a tmux layout string",
	Long: `Parse a tmux window layout string and print its pane tree, the pane ids
in layout order and the canonical string with its checksum.

With --session the layouts of every window in a live tmux session are
fetched (tmux list-windows) and explained instead.

  pane-gateway layout 'b25e,80x24,0,0{40x24,0,0,1,39x24,41,0,2}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		if flagLayoutSession == "" {
			if len(args) != 1 {
				return errors.New("layout string or --session required")
			}
			info, err := explainLayout(args[0])
			if err != nil {
				return err
			}
			return printLayouts(out, []layoutInfo{info})
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := getMultiplexer(cfg.Socket)
		if err != nil {
			return err
		}
		windows, err := m.WindowLayouts(cmd.Context(), flagLayoutSession)
		if err != nil {
			return err
		}
		var infos []layoutInfo
		for _, w := range windows {
			info, err := explainLayout(w.Layout)
			if err != nil {
				return fmt.Errorf("window %s: %w", w.Window, err)
			}
			window := w.Window
			info.Window = &window
			info.Name = w.Name
			infos = append(infos, info)
		}
		return printLayouts(out, infos)
	},
}

func init() {
	layoutCmd.Flags().StringVarP(&flagLayoutSession, "session", "s", "", "explain the windows of a live tmux session")
	layoutCmd.Flags().BoolVar(&flagLayoutJSON, "json", false, "print as JSON")
	rootCmd.AddCommand(layoutCmd)
}

type layoutInfo struct {
	Window    *model.WindowID `json:"window,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     string          `json:"input"`
	Canonical string          `json:"canonical"`
	Panes     []model.PaneID  `json:"panes"`
	Tree      string          `json:"tree"`
}

func explainLayout(s string) (layoutInfo, error) {
	tree, err := layout.Parse(s)
	if err != nil {
		return layoutInfo{}, err
	}
	return layoutInfo{
		Input:     s,
		Canonical: layout.Format(tree),
		Panes:     tree.PaneIDs(),
		Tree:      layout.Dump(tree),
	}, nil
}

func printLayouts(w io.Writer, infos []layoutInfo) error {
	if flagLayoutJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if info.Window != nil {
			fmt.Fprintf(w, "window:    %s %s\n", info.Window, info.Name)
		}
		fmt.Fprintf(w, "canonical: %s\n", info.Canonical)
		fmt.Fprintf(w, "panes:    ")
		for _, p := range info.Panes {
			fmt.Fprintf(w, " %s", p)
		}
		fmt.Fprintln(w)
		fmt.Fprint(w, info.Tree)
	}
	return nil
}
