package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) listTopicsCmd() *cobra.Command {
	var noAuth bool

	cmd := &cobra.Command{
		Use:   "list-topics URL",
		Short: "list the topics accessible on a broker",
		Long: `Query the broker named by the kafka URL for its topics. When the URL names
specific topics the listing is restricted to those.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newStream(noAuth)
			if err != nil {
				return err
			}
			topics, err := s.ListTopics(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			var accessible []string
			for _, name := range topics.Names() {
				if topics.Accessible(name) {
					accessible = append(accessible, name)
				}
			}
			if len(accessible) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No accessible topics")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Accessible topics:")
			for _, name := range accessible {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "connect without authentication")
	return cmd
}
