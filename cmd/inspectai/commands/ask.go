package commands

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/internal/output"
	"github.com/jmylchreest/inspectai/pkg/cleaner/sanitize"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask about an element of a page without picking it",
	Long: `Ask sends one element of a saved or fetched page, cleaned the same way
as a picked element, to the configured AI provider.

Examples:
  inspectai ask -f page.html -s "#pricing" --query "Which plan is cheapest?"
  inspectai ask -u "https://example.com" -s "main" --query "Summarise" -p anthropic
  curl -s https://example.com | inspectai ask --query "What is this page?" --format json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	addInputFlags(askCmd)
	addOutputFlags(askCmd, output.FormatText)
	askCmd.Flags().String("query", "", "question to ask (required)")
	_ = askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	query, _ := cmd.Flags().GetString("query")
	if strings.TrimSpace(query) == "" {
		return userError(dispatch.ErrEmptyQuery)
	}

	page, source, err := readInput(ctx, cmd)
	if err != nil {
		logger.Error("failed to read input", "error", err)
		return err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return err
	}
	selector, _ := cmd.Flags().GetString("selector")
	target, err := selectTarget(doc, selector)
	if err != nil {
		return err
	}
	html, err := sanitize.New(nil).Sanitize(target)
	if err != nil {
		return userError(err)
	}
	logger.Debug("element cleaned", "source", source, "bytes", len(html))

	s, err := loadSettings()
	if err != nil {
		return err
	}

	d, release := newDispatcher()
	defer release()

	logInfo("Asking %s...", s.Provider)
	resp, err := d.Execute(ctx, dispatch.Request{HTML: html, Query: query, Settings: s})
	if err != nil {
		return userError(err)
	}
	return writeResult(cmd, resp)
}
