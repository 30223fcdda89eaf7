package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alchzh/hop-client/auth"
	"github.com/alchzh/hop-client/config"
	"github.com/alchzh/hop-client/hoperr"
)

func (a *app) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "manage stored credentials",
	}
	cmd.AddCommand(
		a.authLocateCmd(),
		a.authListCmd(),
		a.authAddCmd(),
		a.authRemoveCmd(),
	)
	return cmd
}

func (a *app) authLocateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locate",
		Short: "print the credential file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), config.Path(a.environ, "auth"))
			return nil
		},
	}
}

func (a *app) authListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auth.LoadDefault(a.environ)
			if err != nil {
				if errors.Is(err, auth.ErrNoCredentialFile) {
					fmt.Fprintln(cmd.OutOrStdout(), "No credentials configured")
					return nil
				}
				return err
			}
			// passwords never reach the terminal
			for _, cred := range store.Credentials() {
				if cred.Hostname != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s @ %s\n", cred.Username, cred.Hostname)
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), cred.Username)
				}
			}
			return nil
		},
	}
}

func (a *app) authAddCmd() *cobra.Command {
	var (
		username string
		password string
		hostname string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "store a credential",
		Long: `Store a credential in the per-user credential file, replacing any existing
entry for the same username and hostname. The password is prompted for when
not given as a flag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cred, err := promptCredential(username, password, hostname)
			if err != nil {
				return err
			}
			store, err := openOrCreateStore(a.environ)
			if err != nil {
				return err
			}
			return store.Add(cred)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "credential username")
	cmd.Flags().StringVar(&password, "password", "", "credential password (prompted when unset)")
	cmd.Flags().StringVar(&hostname, "hostname", "", "restrict the credential to one broker hostname")
	return cmd
}

func (a *app) authRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove NAME",
		Short: "delete credentials matching a username or hostname",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := auth.LoadDefault(a.environ)
			if err != nil {
				return err
			}
			return store.Remove(args[0])
		},
	}
}

// openOrCreateStore loads the default store, starting an empty one when no
// credential file exists yet.
func openOrCreateStore(environ []string) (*auth.Store, error) {
	store, err := auth.LoadDefault(environ)
	if errors.Is(err, auth.ErrNoCredentialFile) {
		return auth.NewStore(config.Path(environ, "auth")), nil
	}
	return store, err
}

// promptCredential fills in the username and password interactively when they
// were not supplied as flags. Passwords are read with echo disabled.
func promptCredential(username, password, hostname string) (auth.Credential, error) {
	if username == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return auth.Credential{}, hoperr.NewCredential("cannot read username", err)
		}
		username = strings.TrimSpace(line)
	}
	if username == "" {
		return auth.Credential{}, hoperr.NewUsage("a username is required", nil)
	}

	if password == "" {
		fmt.Fprint(os.Stderr, "Password: ")
		secret, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return auth.Credential{}, hoperr.NewCredential("cannot read password", err)
		}
		password = string(secret)
	}
	if password == "" {
		return auth.Credential{}, hoperr.NewUsage("a password is required", nil)
	}

	return auth.Credential{
		Username: username,
		Password: password,
		Hostname: hostname,
	}, nil
}
