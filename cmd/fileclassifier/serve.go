package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/fileclassifier"
	"pkt.systems/fileclassifier/internal/browser"
	"pkt.systems/fileclassifier/internal/persist"
	"pkt.systems/fileclassifier/schema"
	"pkt.systems/pslog"
)

var openBrowser = browser.Open

func newServeCmd() *cobra.Command {
	var flags sessionFlags
	var addr string
	var port int
	var noBrowser bool
	var reset bool
	var showQR bool
	cmd := &cobra.Command{
		Use:   "fileclassifier [flags] <sources...>",
		Short: "Classify files or CSV rows by hand in a local web UI",
		Example: `  fileclassifier file1.txt file2.txt
  fileclassifier --csv data.csv
  fileclassifier --csv --columns "Detection Name,uuid,message" data.csv
  fileclassifier --categories "spam,ham,unsure" *.txt
  fileclassifier --reset file1.txt file2.txt`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			logger := pslog.Ctx(cmd.Context())
			cfg, serverCfg, err := flags.load(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if reset {
				return resetSession(logger, out, serverCfg.StateDir, serverCfg.Session)
			}
			serverCfg.HTTP.Addr, err = listenAddr(serverCfg.HTTP.Addr, addr, port)
			if err != nil {
				return err
			}

			logger.Info("session config",
				"mode", string(serverCfg.Session.Mode),
				"categories", strings.Join(serverCfg.Session.Categories, ","),
				"sources", len(serverCfg.Session.Sources),
			)
			server, err := fileclassifier.New(cmd.Context(), serverCfg, fileclassifier.ServerDeps{Logger: logger})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := server.Start(ctx); err != nil {
				return err
			}

			url := server.URL()
			_, _ = fmt.Fprintf(out, "Server started at %s\n", url)
			if showQR && isTerminal(out) {
				printQR(out, url)
			}
			if cfg.HTTP.OpenBrowser && !noBrowser {
				if err := openBrowser(ctx, url); err != nil {
					logger.Warn("browser launch failed", "url", url, "err", err)
					_, _ = fmt.Fprintf(out, "Browser launch failed. Please open %s manually.\n", url)
				}
			}
			_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop the server")
			// Wait returns once the final save is done; psi exits right after.
			if err := server.Wait(); err != nil {
				logger.Warn("server stop failed", "err", err)
				return err
			}
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, 127.0.0.1:0)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default: random)")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "don't launch the browser")
	cmd.Flags().BoolVar(&reset, "reset", false, "clear previous classifications and comments for the given sources and exit")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print the UI address as a QR code")
	return cmd
}

func resetSession(logger pslog.Logger, out io.Writer, stateDir string, session schema.SessionConfig) error {
	store, err := persist.NewStoreWithLogger(stateDir, logger)
	if err != nil {
		return err
	}
	key := session.Fingerprint()
	removed, err := store.Clear(key)
	if err != nil {
		return err
	}
	logger.Info("session reset", "session", string(key), "removed", removed)
	if removed {
		_, _ = fmt.Fprintln(out, "Classification data cleared for specified files!")
	} else {
		_, _ = fmt.Fprintln(out, "No saved classification data for specified files.")
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printQR(w io.Writer, url string) {
	qrterminal.GenerateHalfBlock(url, qrterminal.L, w)
}
