package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/spf13/cobra"
	"github.com/yosssi/gohtml"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/pkg/cleaner"
	"github.com/jmylchreest/inspectai/pkg/cleaner/markdown"
	"github.com/jmylchreest/inspectai/pkg/cleaner/sanitize"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Show what an element looks like after cleaning",
	Long: `Clean runs the sanitizer (and optionally the markdown extractor) over a
page or one element of it and prints the result. Use it to see exactly what
would be sent to a provider.

Presets:
  default  the picker's cleaning rules
  scrape   the Google AI Mode answer rules (also drops buttons and video)
  none     no cleaning

Examples:
  inspectai clean -f page.html -s "article" --stats
  inspectai clean -u "https://example.com" --markdown
  inspectai clean -u "https://example.com" --fetch-mode dynamic --pretty`,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	addInputFlags(cleanCmd)
	flags := cleanCmd.Flags()
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("preset", "default", "cleaning preset: "+strings.Join(append(sanitize.PresetNames(), "none"), ", "))
	flags.Bool("markdown", false, "convert the cleaned element to markdown")
	flags.Bool("pretty", false, "indent the cleaned HTML")
	flags.Bool("stats", false, "print cleaning statistics to stderr")
}

func runClean(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

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
	markup, err := goquery.OuterHtml(target)
	if err != nil {
		return err
	}

	preset, _ := cmd.Flags().GetString("preset")
	toMarkdown, _ := cmd.Flags().GetBool("markdown")
	pretty, _ := cmd.Flags().GetBool("pretty")
	showStats, _ := cmd.Flags().GetBool("stats")

	var sanitizer *sanitize.Sanitizer
	var stages []cleaner.Cleaner
	if preset == "none" {
		stages = append(stages, cleaner.NewNoop())
	} else {
		cfg, err := sanitize.Preset(preset)
		if err != nil {
			return err
		}
		sanitizer = sanitize.New(cfg)
		stages = append(stages, &elementCleaner{sanitizer: sanitizer, target: target})
	}
	if toMarkdown {
		stages = append(stages, markdown.New(nil))
	}

	chain := cleaner.NewChain(stages...)
	logger.Debug("cleaning", "source", source, "cleaner", chain.Name())
	out, err := chain.Clean(markup)
	if err != nil {
		return userError(err)
	}
	if pretty && !toMarkdown {
		out = gohtml.Format(out)
	}

	if showStats && sanitizer != nil {
		res, err := sanitizer.SanitizeWithStats(target)
		if err == nil {
			fmt.Fprintf(os.Stderr, "=== Cleaning stats ===\nSource: %s\n%s", source, res.Stats.String())
		}
	}

	w, closeFn, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	_, err = fmt.Fprintln(w, strings.TrimRight(out, "\n"))
	return err
}

// elementCleaner sanitizes the already-selected element instead of
// re-parsing its markup, which would lose context for elements such as
// <tr> or <li> outside their parents.
type elementCleaner struct {
	sanitizer *sanitize.Sanitizer
	target    *goquery.Selection
}

func (c *elementCleaner) Clean(string) (string, error) {
	return c.sanitizer.Sanitize(c.target)
}

func (c *elementCleaner) Name() string {
	return c.sanitizer.Name()
}
