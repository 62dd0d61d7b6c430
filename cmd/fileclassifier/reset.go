package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/fileclassifier/internal/appconfig"
	"pkt.systems/fileclassifier/internal/persist"
	"pkt.systems/pslog"
)

func newResetCmd() *cobra.Command {
	var flags sessionFlags
	var all bool
	cmd := &cobra.Command{
		Use:   "reset [flags] <sources...>",
		Short: "Clear saved classifications",
		Long:  "Clear the saved session for the given sources, or every saved session with --all.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := pslog.Ctx(cmd.Context())
			out := cmd.OutOrStdout()
			if !all {
				if len(args) == 0 {
					return errors.New("at least one source file is required (or use --all)")
				}
				_, serverCfg, err := flags.load(args)
				if err != nil {
					return err
				}
				return resetSession(logger, out, serverCfg.StateDir, serverCfg.Session)
			}
			if len(args) > 0 {
				return errors.New("--all does not take sources")
			}
			cfg, err := appconfig.Load(flags.cfgPath)
			if err != nil {
				return err
			}
			store, err := persist.NewStoreWithLogger(cfg.StateDir, logger)
			if err != nil {
				return err
			}
			count, err := store.ClearAll()
			if err != nil {
				return err
			}
			logger.Info("sessions reset", "removed", count, "dir", store.Dir())
			_, err = fmt.Fprintf(out, "Cleared %d saved session(s).\n", count)
			return err
		},
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&all, "all", false, "clear every saved session")
	return cmd
}
