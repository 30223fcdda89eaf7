package cli

import (
	"bufio"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/message"
)

func (a *app) publishCmd() *cobra.Command {
	var (
		formatName string
		noAuth     bool
	)

	cmd := &cobra.Command{
		Use:   "publish URL [FILE ...]",
		Short: "publish messages to a topic",
		Long: `Publish messages parsed from the given files, or from standard input when
it is piped or redirected, to the topic named by the kafka URL.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			format, err := message.ParseFormat(formatName)
			if err != nil {
				return err
			}

			piped := !term.IsTerminal(int(os.Stdin.Fd()))
			if piped && format != message.FormatBlob {
				return hoperr.NewUsage("piping/redirection only allowed for BLOB formats",
					message.ErrPipedNonBlob)
			}
			if !piped && len(args) == 1 {
				return hoperr.NewUsage("no messages to publish: no files given and stdin is a terminal", nil)
			}

			s, err := a.newStream(noAuth)
			if err != nil {
				return err
			}
			producer, err := s.OpenProducer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer func() {
				if cerr := producer.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			for _, path := range args[1:] {
				msg, err := message.LoadFile(format, path)
				if err != nil {
					return err
				}
				if err := producer.Write(cmd.Context(), msg); err != nil {
					return err
				}
			}

			if piped {
				scanner := bufio.NewScanner(os.Stdin)
				scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "" {
						continue
					}
					msg, err := message.LoadPiped(format, line)
					if err != nil {
						return err
					}
					if err := producer.Write(cmd.Context(), msg); err != nil {
						return err
					}
				}
				if err := scanner.Err(); err != nil {
					return hoperr.NewCodec("cannot read messages from stdin", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&formatName, "format", "f", string(message.FormatBlob),
		"message format: BLOB, CIRCULAR, VOEVENT or RAW")
	cmd.Flags().BoolVar(&noAuth, "no-auth", false, "connect without authentication")
	return cmd
}
