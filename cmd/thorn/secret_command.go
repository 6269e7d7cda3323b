package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"thorn/internal/identity"
)

func newSecretCommand(ctx *commandContext) *cobra.Command {
	secretCmd := &cobra.Command{
		Use:   "secret",
		Short: "Account secret utilities",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Generate the account secret the daemon unlocks Briar with",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			secret, err := identity.GenerateSecret()
			if err != nil {
				return err
			}
			if err := identity.WriteSecretFile(cfg.Paths.SecretFile, secret); err != nil {
				return err
			}
			stdout := cmd.OutOrStdout()
			fmt.Fprintf(stdout, "Wrote account secret to %s\n", cfg.Paths.SecretFile)
			fmt.Fprintln(stdout, "Back it up somewhere safe; without it the Briar account cannot be unlocked.")
			return nil
		},
	}

	secretCmd.AddCommand(initCmd)
	return secretCmd
}
