package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/message"
	"github.com/alchzh/hop-client/stream"
)

func (a *app) subscribeCmd() *cobra.Command {
	var (
		groupID     string
		startAtName string
		persist     bool
		noAuth      bool
		timeoutSecs int
	)

	cmd := &cobra.Command{
		Use:   "subscribe URL",
		Short: "read messages from one or more topics",
		Long: `Read messages from the topics named by the kafka URL and print them to
stdout. Without --persist the command drains the topics and exits once no
further messages arrive within the poll timeout; with --persist it listens
indefinitely and durably commits its position as it goes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.newStream(noAuth)
			if err != nil {
				return err
			}
			// an explicit flag outranks the general-config default
			if cmd.Flags().Changed("start-at") {
				startAt, err := stream.ParseStartPosition(startAtName)
				if err != nil {
					return err
				}
				s.StartAt = startAt
			}
			s.Persist = persist
			if persist {
				s.PollTimeout = stream.PollForever
			}
			if cmd.Flags().Changed("timeout") {
				if persist {
					return hoperr.NewUsage("--timeout has no effect with --persist", nil)
				}
				s.PollTimeout = time.Duration(timeoutSecs) * time.Second
			}

			consumer, err := s.OpenConsumer(cmd.Context(), args[0], groupID)
			if err != nil {
				return err
			}
			defer consumer.Close()

			log := a.logger()
			for {
				msg, _, err := consumer.Next(cmd.Context())
				switch {
				case errors.Is(err, stream.ErrEndOfStream):
					return nil
				case cmd.Context().Err() != nil:
					// interrupted; positions already committed stay committed
					return nil
				case err != nil && hoperr.TypeOf(err) == hoperr.TypeCodec:
					// a bad message must not end the subscription
					log.Error(err, "skipping undecodable message")
					continue
				case err != nil:
					return err
				}

				text, err := renderMessage(msg)
				if err != nil {
					log.Error(err, "skipping unprintable message")
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), text)
			}
		},
	}

	cmd.Flags().StringVarP(&groupID, "group-id", "g", "",
		"consumer group ID; generated at random when unset")
	cmd.Flags().StringVarP(&startAtName, "start-at", "s", "earliest",
		"position to start from without a committed bookmark: earliest or latest")
	cmd.Flags().BoolVarP(&persist, "persist", "p", false,
		"listen indefinitely and commit positions as messages arrive")
	cmd.Flags().IntVarP(&timeoutSecs, "timeout", "t", 10,
		"seconds to wait for further messages before exiting")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "connect without authentication")
	return cmd
}

// renderMessage formats a decoded message for terminal display.
func renderMessage(msg message.Message) (string, error) {
	switch m := msg.(type) {
	case *message.Blob:
		b, err := json.Marshal(m.Content)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case *message.Circular:
		return m.Text(), nil
	case *message.VOEvent:
		b, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return "", err
		}
		return string(b), nil
	case *message.Raw:
		return string(m.Content), nil
	default:
		return "", hoperr.NewCodec(fmt.Sprintf("message format %q not recognized", msg.Format()), nil)
	}
}
