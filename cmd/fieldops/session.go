package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/fieldops/task"
)

func (a *app) loginCmd() *cobra.Command {
	var tech task.Technician
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in as a technician",
		Long: `Sign in as a technician. With only --email, the technician is looked up
on the server; otherwise --id and --name are required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tech.Email = strings.TrimSpace(tech.Email)
			if tech.ID == 0 && tech.Email != "" {
				found, err := a.lookupTechnician(cmd.Context(), tech.Email)
				if err != nil {
					return err
				}
				tech = found
			}
			sess, err := a.sessions.Save(tech)
			if err != nil {
				return err
			}
			t := sess.Technician()
			fmt.Fprintf(a.out, "Signed in as %s (#%d)\n", t.Name, t.ID)
			return nil
		},
	}
	cmd.Flags().Int64Var(&tech.ID, "id", 0, "technician id")
	cmd.Flags().StringVar(&tech.Name, "name", "", "technician name")
	cmd.Flags().StringVar(&tech.Email, "email", "", "technician email")
	return cmd
}

func (a *app) lookupTechnician(ctx context.Context, email string) (task.Technician, error) {
	techs, err := a.api.Technicians(ctx)
	if err != nil {
		return task.Technician{}, fmt.Errorf("look up technician: %w", err)
	}
	for _, t := range techs {
		if strings.EqualFold(t.Email, email) {
			return t, nil
		}
	}
	return task.Technician{}, errors.New("no technician with email " + email + "; pass --id and --name")
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in technician",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := a.sessions.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in technician",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			t := sess.Technician()
			fmt.Fprintf(a.out, "%s (#%d) %s\n", t.Name, t.ID, t.Email)
			return nil
		},
	}
}
