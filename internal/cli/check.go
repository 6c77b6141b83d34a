package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ruffel/russh"
	"github.com/ruffel/russh/sessiontest"
)

const nameWidth = 32

func (a *App) checkCmd() *cobra.Command {
	var remoteDir string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify a host against the russh session contracts",
		Long: `Run the russh behavioural contract suite against the remote host.

The suite executes commands and writes scratch files below --remote-dir,
removing them afterwards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withSession(cmd, func(ctx context.Context, s russh.Session) error {
				_, _ = fmt.Fprintln(a.Out, titleStyle.Render("russh contract check"))

				outcomes := sessiontest.Check(ctx, sessiontest.Env{Session: s, RemoteDir: remoteDir})

				return a.renderOutcomes(outcomes)
			})
		},
	}

	cmd.Flags().StringVar(&remoteDir, "remote-dir", "/tmp", "writable remote directory for scratch files")

	return cmd
}

func (a *App) renderOutcomes(outcomes []sessiontest.Outcome) error {
	var (
		category string
		failures []string
	)

	for _, o := range outcomes {
		if o.Case.Category != category {
			category = o.Case.Category
			_, _ = fmt.Fprintln(a.Out, catStyle.Render(strings.ToUpper(category)))
		}

		style := passedStyle

		switch o.Status {
		case sessiontest.StatusFailed:
			style = failedStyle

			failures = append(failures, fmt.Sprintf("%s: %s", o.Case.ID(), summarize(o.Message)))
		case sessiontest.StatusSkipped:
			style = skippedStyle
		case sessiontest.StatusPassed:
		}

		_, _ = fmt.Fprintf(a.Out, "  %-*s %s\n", nameWidth, o.Case.Name, style.Render(string(o.Status)))
	}

	if len(failures) == 0 {
		_, _ = fmt.Fprintln(a.Out, passedStyle.Render(fmt.Sprintf("\nAll %d contracts passed.", len(outcomes))))

		return nil
	}

	_, _ = fmt.Fprintln(a.Out, errorStyle.Render("\nFailures:"))

	for _, f := range failures {
		_, _ = fmt.Fprintf(a.Out, "  - %s\n", f)
	}

	return fmt.Errorf("%d of %d contracts failed", len(failures), len(outcomes))
}

// summarize reduces testify's multi-line failure report to its Error field.
func summarize(msg string) string {
	lines := strings.Split(msg, "\n")

	for i, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "Error:") {
			continue
		}

		summary := strings.TrimSpace(strings.TrimPrefix(line, "Error:"))

		if i+1 < len(lines) {
			next := strings.TrimSpace(lines[i+1])
			if next != "" && !strings.HasPrefix(next, "Test:") && !strings.HasPrefix(next, "Messages:") {
				summary += " " + next
			}
		}

		return summary
	}

	return strings.TrimSpace(msg)
}
