package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/fileclassifier/internal/appconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	var path string
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			written, err := appconfig.WriteDefault(path, force)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", written)
			return err
		},
	}
	initCmd.Flags().StringVar(&path, "config", "", "path to config file (default ~/.config/file-classifier/config.yaml)")
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	cmd.AddCommand(initCmd)
	return cmd
}
