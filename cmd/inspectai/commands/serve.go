package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/inspectai/internal/logger"
	"github.com/jmylchreest/inspectai/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the side panel protocol over a websocket",
	Long: `Serve opens the page in a visible browser and accepts side panel
connections on ws://ADDR/ws. The panel starts and stops picking, receives
the selected element, and sends questions about it.

The server stops when the browser window is closed or on Ctrl-C.

Examples:
  inspectai serve -u "https://example.com"
  inspectai serve -u "https://example.com" --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.StringP("url", "u", "about:blank", "page to open")
	flags.String("addr", "127.0.0.1:8765", "listen address")
	flags.StringSlice("allow-origin", nil, "extra websocket origins to accept (can be repeated)")
	flags.String("chrome-path", "", "Chrome/Chromium binary (default: auto-detect)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	url, _ := cmd.Flags().GetString("url")
	addr, _ := cmd.Flags().GetString("addr")
	origins, _ := cmd.Flags().GetStringSlice("allow-origin")
	chromePath, _ := cmd.Flags().GetString("chrome-path")

	sess, tab, closeBrowser, err := openPicker(ctx, url, chromePath)
	if err != nil {
		return userError(err)
	}
	defer closeBrowser()

	store, err := settingsStore()
	if err != nil {
		return err
	}
	d, release := newDispatcher()
	defer release()

	cfg := server.DefaultConfig()
	cfg.AllowedOrigins = origins
	srv := server.New(sess, d, store, cfg)

	// Closing the browser window ends the session.
	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() {
		select {
		case <-tab.Context().Done():
			logger.Info("browser closed, shutting down")
			stop()
		case <-serveCtx.Done():
		}
	}()

	logInfo("Panel endpoint: ws://%s/ws", addr)
	return srv.ListenAndServe(serveCtx, addr)
}
