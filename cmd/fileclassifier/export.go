package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/fileclassifier"
	"pkt.systems/fileclassifier/internal/export"
	"pkt.systems/pslog"
)

func newExportCmd() *cobra.Command {
	var flags sessionFlags
	var outPath string
	var deliver bool
	cmd := &cobra.Command{
		Use:   "export [flags] <sources...>",
		Short: "Export the saved classifications for the given sources",
		Long: "Export the saved session for the given sources as JSON. The document goes to stdout, " +
			"to --out, or with --deliver to the configured export destinations (export.dir, export.s3).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return errors.New("at least one source file is required")
			}
			ctx := cmd.Context()
			logger := pslog.Ctx(ctx)
			_, serverCfg, err := flags.load(args)
			if err != nil {
				return err
			}
			deps := fileclassifier.ServerDeps{Logger: logger}
			session, err := fileclassifier.OpenSession(ctx, serverCfg, deps, nil)
			if err != nil {
				return err
			}
			data, err := session.Service.Export(ctx)
			if err != nil {
				return err
			}
			if data.Summary.ClassifiedItems == 0 {
				logger.Warn("export has no classifications", "session", string(session.Service.Key()))
			}

			if deliver {
				exporter, err := fileclassifier.NewExporter(ctx, serverCfg.Export, deps)
				if err != nil {
					return err
				}
				if exporter.Len() == 0 {
					return errors.New("no export destinations configured (set export.dir or export.s3.bucket)")
				}
				results, err := exporter.Deliver(ctx, data)
				for _, result := range results {
					if result.Error == "" {
						_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", result.Destination, result.Location)
					}
				}
				return err
			}

			encoded, err := export.Encode(data)
			if err != nil {
				return err
			}
			if outPath == "" || outPath == "-" {
				_, err = cmd.OutOrStdout().Write(encoded)
				return err
			}
			if err := os.WriteFile(outPath, encoded, 0o600); err != nil {
				return err
			}
			logger.Info("export written", "path", outPath, "export_id", data.SessionID)
			return nil
		},
	}
	flags.bind(cmd)
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the export to a file instead of stdout")
	cmd.Flags().BoolVar(&deliver, "deliver", false, "send the export to the configured destinations")
	return cmd
}
