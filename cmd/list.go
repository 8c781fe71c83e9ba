package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/timvw/pane-gateway/internal/model"
	"github.com/timvw/pane-gateway/internal/mux"
)

var (
	flagListJSON    bool
	flagListPreview int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tmux sessions",
	Long: `List the sessions on the tmux server.

Each line is a session name that can be passed to attach --session.
With --preview N the last N lines of each session's active pane are shown
below it.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		m, err := getMultiplexer(cfg.Socket)
		if err != nil {
			return err
		}
		return listSessions(cmd.Context(), cmd.OutOrStdout(), m, flagListPreview, flagListJSON)
	},
}

// sessionListing is a session with the tail of its active pane.
type sessionListing struct {
	model.SessionInfo
	Preview []string `json:"preview,omitempty"`
}

func listSessions(ctx context.Context, out io.Writer, m mux.Multiplexer, preview int, asJSON bool) error {
	sessions, err := m.ListSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	listings := make([]sessionListing, 0, len(sessions))
	for _, s := range sessions {
		l := sessionListing{SessionInfo: s}
		if preview > 0 {
			// a session's name targets its active pane
			content, err := m.CapturePane(ctx, s.Name)
			if err != nil {
				return err
			}
			l.Preview = lastLines(content, preview)
		}
		listings = append(listings, l)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(listings)
	}
	for _, l := range listings {
		attached := ""
		if l.Attached > 0 {
			attached = " (attached)"
		}
		fmt.Fprintf(out, "%s\t%s\t%d windows%s\n", l.Name, l.ID, l.Windows, attached)
		for _, line := range l.Preview {
			fmt.Fprintf(out, "    %s\n", line)
		}
	}
	return nil
}

// lastLines returns the last n lines of s, ignoring trailing blank lines.
func lastLines(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}

func init() {
	listCmd.Flags().BoolVar(&flagListJSON, "json", false, "print sessions as JSON")
	listCmd.Flags().IntVar(&flagListPreview, "preview", 0, "show the last N lines of each session's active pane")
	rootCmd.AddCommand(listCmd)
}
