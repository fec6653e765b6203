package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/internal/output"
	"github.com/jmylchreest/inspectai/pkg/browser"
	"github.com/jmylchreest/inspectai/pkg/dispatch"
	"github.com/jmylchreest/inspectai/pkg/fetcher"
	"github.com/jmylchreest/inspectai/pkg/scrape"
)

// errNoMatch is returned when --selector matches nothing.
var errNoMatch = errors.New("selector matched no element")

// addInputFlags registers the flags shared by commands that read a page.
func addInputFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("file", "f", "", "read HTML from file (\"-\" for stdin)")
	flags.StringP("url", "u", "", "fetch HTML from URL")
	flags.StringP("selector", "s", "", "CSS selector of the element to use (default: <body>)")
	flags.String("fetch-mode", "static", "fetch mode: static, dynamic")
	flags.Duration("timeout", 30*time.Second, "fetch timeout")
	flags.String("max-size", "5MB", "max page size to fetch (e.g., 500KB, 5MB, 0=unlimited)")
}

// addOutputFlags registers --format and --output.
func addOutputFlags(cmd *cobra.Command, def output.Format) {
	cmd.Flags().String("format", string(def), "output format: text, json, jsonl, yaml")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
}

// readInput loads the page named by --file or --url, or stdin when neither
// is set. It returns the HTML and a description of its source.
func readInput(ctx context.Context, cmd *cobra.Command) (string, string, error) {
	file, _ := cmd.Flags().GetString("file")
	url, _ := cmd.Flags().GetString("url")

	switch {
	case file != "" && url != "":
		return "", "", errors.New("use either --file or --url, not both")
	case url != "":
		html, err := fetchInput(ctx, cmd, url)
		return html, url, err
	case file != "" && file != "-":
		data, err := os.ReadFile(file) //#nosec G304 -- CLI tool reads a user-specified file
		if err != nil {
			return "", "", fmt.Errorf("reading file %s: %w", file, err)
		}
		return string(data), file, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
}

func fetchInput(ctx context.Context, cmd *cobra.Command, url string) (string, error) {
	mode, _ := cmd.Flags().GetString("fetch-mode")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	maxSize, err := parseSize(cmd)
	if err != nil {
		return "", err
	}

	var f fetcher.Fetcher
	switch mode {
	case "dynamic":
		cfg := browser.DefaultConfig()
		cfg.Timeout = timeout
		b, err := browser.New(cfg)
		if err != nil {
			logger.Error("failed to start browser", "error", err)
			return "", err
		}
		f = b
	case "static", "":
		f = fetcher.NewStatic(fetcher.StaticConfig{Timeout: timeout})
	default:
		return "", fmt.Errorf("unknown fetch mode: %s (use 'static' or 'dynamic')", mode)
	}
	defer func() { _ = f.Close() }()

	logger.Debug("fetching", "url", url, "fetcher", f.Type(), "max_bytes", maxSize)
	content, err := f.Fetch(ctx, url, fetcher.Options{Timeout: timeout, MaxBytes: maxSize})
	if err != nil {
		return "", err
	}
	logger.Info("fetched page", "url", content.URL, "title", content.Title, "size", humanize.Bytes(uint64(len(content.HTML))))
	return content.HTML, nil
}

// parseSize reads --max-size. Empty or "0" means unlimited.
func parseSize(cmd *cobra.Command) (int, error) {
	s, _ := cmd.Flags().GetString("max-size")
	if strings.TrimSpace(s) == "" || s == "0" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid max-size %q: %w", s, err)
	}
	return int(n), nil
}

// selectTarget returns the first element matching selector, or <body>.
func selectTarget(doc *goquery.Document, selector string) (*goquery.Selection, error) {
	if strings.TrimSpace(selector) == "" {
		return doc.Find("body").First(), nil
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", errNoMatch, selector)
	}
	return sel, nil
}

// openOutput returns the --output file or the command's stdout.
func openOutput(cmd *cobra.Command) (io.Writer, func(), error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path) //#nosec G304 -- CLI tool writes to user-specified output file
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

// writeResult writes data in the --format chosen on cmd.
func writeResult(cmd *cobra.Command, data any) error {
	formatStr, _ := cmd.Flags().GetString("format")
	format, err := output.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	w, closeFn, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return output.WriteOne(w, format, data)
}

// newDispatcher builds a dispatcher whose google-ai-mode searches run in a
// headless browser started on first use. The returned func releases it.
func newDispatcher(opts ...scrape.Option) (*dispatch.Dispatcher, func()) {
	lazy := browser.NewLazy(browser.DefaultConfig())
	runner := scrape.NewRunner(scrape.FromBrowser(lazy), opts...)
	d := dispatch.New(dispatch.WithSearcher(runner))
	return d, func() {
		if err := lazy.Close(); err != nil {
			logger.Debug("closing search browser", "error", err)
		}
	}
}
