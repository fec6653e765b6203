package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/internal/output"
	"github.com/jmylchreest/inspectai/pkg/browser"
	"github.com/jmylchreest/inspectai/pkg/cleaner/markdown"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/picker"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Pick an element in a browser window",
	Long: `Pick opens the page in a visible browser window. Hover to highlight an
element, click to select it, press Escape to cancel.

The selected element is printed as cleaned HTML, as markdown with
--markdown, or sent to the AI provider with --query.

Examples:
  inspectai pick -u "https://example.com"
  inspectai pick -u "https://example.com" --markdown
  inspectai pick -u "https://example.com" --query "Explain this" -p gemini`,
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)

	flags := pickCmd.Flags()
	flags.StringP("url", "u", "", "page to open (required)")
	flags.Bool("markdown", false, "print the selection as markdown")
	flags.String("query", "", "ask the AI provider about the selection")
	flags.String("chrome-path", "", "Chrome/Chromium binary (default: auto-detect)")
	addOutputFlags(pickCmd, output.FormatText)
	_ = pickCmd.MarkFlagRequired("url")
}

func runPick(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	url, _ := cmd.Flags().GetString("url")
	query, _ := cmd.Flags().GetString("query")
	toMarkdown, _ := cmd.Flags().GetBool("markdown")
	chromePath, _ := cmd.Flags().GetString("chrome-path")

	sess, _, closeBrowser, err := openPicker(ctx, url, chromePath)
	if err != nil {
		return userError(err)
	}
	defer closeBrowser()

	logInfo("Hover an element and click to select it. Press Escape to cancel.")
	sel, err := sess.Pick(ctx)
	if err != nil {
		return userError(err)
	}
	defer sess.Release(ctx)
	logger.Debug("element selected", "session", sel.ID, "parent", sel.ParentTag, "bytes", len(sel.HTML))

	switch {
	case query != "":
		s, err := loadSettings()
		if err != nil {
			return err
		}
		d, release := newDispatcher()
		defer release()

		logInfo("Asking %s...", s.Provider)
		resp, err := d.Execute(ctx, dispatch.Request{HTML: sel.HTML, Query: query, Settings: s})
		if err != nil {
			return userError(err)
		}
		return writeResult(cmd, resp)
	case toMarkdown:
		md, err := markdown.New(nil).ExtractHTML(sel.HTML)
		if err != nil {
			return err
		}
		return writeResult(cmd, md)
	default:
		return writeResult(cmd, sel)
	}
}

// openPicker launches a visible browser on url and prepares a picking
// session on it. The returned func closes the browser.
func openPicker(ctx context.Context, url, chromePath string) (*picker.Session, *browser.Tab, func(), error) {
	cfg := browser.VisibleConfig()
	cfg.ChromePath = chromePath
	b, err := browser.New(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	tab, err := b.NewTab(ctx)
	if err != nil {
		_ = b.Close()
		return nil, nil, nil, err
	}
	closeAll := func() {
		tab.Close()
		_ = b.Close()
	}

	if err := tab.Navigate(ctx, url); err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	page, err := picker.NewCDPPage(ctx, tab)
	if err != nil {
		closeAll()
		return nil, nil, nil, err
	}
	logger.Info("page opened", "url", url)
	return picker.NewSession(page), tab, closeAll, nil
}
