package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alchzh/hop-client/auth"
	"github.com/alchzh/hop-client/config"
	"github.com/alchzh/hop-client/hoperr"
)

func (a *app) configureCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "manage client configuration",
	}
	cmd.AddCommand(
		a.configureLocateCmd(),
		a.configureSetupCmd(),
	)
	return cmd
}

func (a *app) configureLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "print the configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path(a.environ, "config"))
			return nil
		},
	}
}

func (a *app) configureSetupCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "set up an initial credential interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(a.environ, "auth")
			if _, err := os.Stat(path); err == nil && !force {
				return hoperr.NewUsage(
					fmt.Sprintf("configuration already exists at %s, use --force to overwrite", path), nil)
			}

			cred, err := promptCredential("", "", "")
			if err != nil {
				return err
			}

			store := auth.NewStore(path)
			if err := store.Add(cred); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote credential to %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing credential file")
	return cmd
}
