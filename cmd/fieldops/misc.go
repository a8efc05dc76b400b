package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/fieldops/config"
	"github.com/GoCodeAlone/fieldops/internal/version"
	"github.com/GoCodeAlone/fieldops/update"
)

func (a *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the client configuration",
	}
	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if _, err := os.Stat(a.configPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
			}
			if err := config.WriteDefault(a.configPath); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Wrote %s\n", a.configPath)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)
	return cmd
}

func (a *app) updateCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fieldops to the latest release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u := update.New(version.Version, "fieldops")
			rel, err := u.CheckForUpdate(cmd.Context())
			if errors.Is(err, update.ErrNoAsset) {
				return fmt.Errorf("%w; download manually from https://github.com/%s/%s/releases", err, u.RepoOwner, u.RepoName)
			}
			if err != nil {
				return err
			}
			if rel == nil {
				fmt.Fprintf(a.out, "fieldops %s is up to date\n", version.Version)
				return nil
			}
			if check {
				fmt.Fprintf(a.out, "Update available: %s\n", rel.Version)
				return nil
			}
			if err := u.ApplyUpdate(cmd.Context(), rel); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Updated to %s\n", rel.Version)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only report whether an update exists")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version.String("fieldops"))
			return nil
		},
	}
}
