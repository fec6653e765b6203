package commands

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/internal/output"
	"github.com/jmylchreest/inspectai/pkg/browser"
	"github.com/jmylchreest/inspectai/pkg/cleaner/sanitize"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/scrape"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Ask Google AI Mode and print the rendered answer",
	Long: `Scrape opens Google AI Mode in a browser, waits for the answer to
render, and prints it as markdown. With --file the HTML in the file is
included in the question, as when asking about a picked element.

If Google shows a captcha, run again with --visible and solve it in the
browser window.

Examples:
  inspectai scrape --query "What is the tallest building in Europe?"
  inspectai scrape -f element.html --query "Explain this code"`,
	RunE: runScrape,
}

func init() {
	rootCmd.AddCommand(scrapeCmd)

	flags := scrapeCmd.Flags()
	flags.String("query", "", "question to ask (required)")
	flags.StringP("file", "f", "", "HTML to include with the question")
	flags.Bool("visible", false, "show the browser window")
	flags.Duration("timeout", scrape.DefaultSafetyTimeout, "overall time limit")
	addOutputFlags(scrapeCmd, output.FormatText)
	_ = scrapeCmd.MarkFlagRequired("query")
}

// scrapeOutput is the scrape command's structured output.
type scrapeOutput struct {
	Query    string        `json:"query" yaml:"query"`
	Answer   string        `json:"answer" yaml:"answer"`
	Selector string        `json:"selector" yaml:"selector"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

func (o scrapeOutput) Text() string {
	return o.Answer
}

func runScrape(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	query, _ := cmd.Flags().GetString("query")
	if strings.TrimSpace(query) == "" {
		return userError(dispatch.ErrEmptyQuery)
	}
	prompt := query
	if file, _ := cmd.Flags().GetString("file"); file != "" {
		data, err := os.ReadFile(file) //#nosec G304 -- CLI tool reads a user-specified file
		if err != nil {
			return err
		}
		html, err := sanitize.New(nil).SanitizeHTML(string(data))
		if err != nil {
			return userError(err)
		}
		prompt = dispatch.SearchPrompt(html, query)
	}

	cfg := browser.DefaultConfig()
	if visible, _ := cmd.Flags().GetBool("visible"); visible {
		cfg = browser.VisibleConfig()
	}
	lazy := browser.NewLazy(cfg)
	defer func() { _ = lazy.Close() }()

	timeout, _ := cmd.Flags().GetDuration("timeout")
	runner := scrape.NewRunner(scrape.FromBrowser(lazy), scrape.WithSafetyTimeout(timeout))

	logInfo("Asking Google AI Mode...")
	start := time.Now()
	res, err := runner.Run(ctx, prompt)
	if err != nil {
		return userError(err)
	}
	logger.Debug("answer located", "selector", res.Selector, "chars", len(res.Markdown))

	return writeResult(cmd, scrapeOutput{
		Query:    query,
		Answer:   res.Markdown,
		Selector: res.Selector,
		Duration: time.Since(start),
	})
}
