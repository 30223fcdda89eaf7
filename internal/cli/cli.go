// Package cli implements the hop command line interface: a thin shim over the
// address, auth, message and stream packages.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/alchzh/hop-client/config"
	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
	"github.com/alchzh/hop-client/stream"
)

const progname = "hop"

// Version is the client version reported by `hop version` and --version.
const Version = "0.5.0"

type app struct {
	debug   bool
	environ []string
}

// New assembles the root command and its subcommands.
func New() *cobra.Command {
	a := &app{environ: os.Environ()}
	return a.root()
}

// Main runs the CLI and returns the process exit code. Failures print a
// single-line advisory to stderr by default; --debug exposes the full
// underlying cause chain.
func Main(args []string) int {
	a := &app{environ: os.Environ()}
	root := a.root()
	root.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		if a.debug {
			fmt.Fprintf(os.Stderr, "%s: %s\n", progname, hoperr.Detail(err))
		} else {
			fmt.Fprintf(os.Stderr, "%s: %s\n", progname, hoperr.Advisory(err))
		}
		return hoperr.ExitCode(err)
	}
	return 0
}

func (a *app) root() *cobra.Command {
	root := &cobra.Command{
		Use:           progname,
		Short:         "publish and subscribe to astronomical alert streams",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVar(&a.debug, "debug", false,
		"show full diagnostic detail instead of one-line advisories")

	root.AddCommand(
		a.publishCmd(),
		a.subscribeCmd(),
		a.listTopicsCmd(),
		a.authCmd(),
		a.configureCmd(),
		a.versionCmd(),
	)
	return root
}

// logger builds the CLI logger; --debug raises the level and every entry goes
// to stderr so stdout stays parseable.
func (a *app) logger() logger.Log {
	level := logrus.WarnLevel
	if a.debug {
		level = logrus.DebugLevel
	}
	return logger.New(os.Stderr, level)
}

// newStream applies general-config defaults and CLI flags to a session.
func (a *app) newStream(noAuth bool) (*stream.Stream, error) {
	cfg, err := config.Load(a.environ)
	if err != nil {
		return nil, hoperr.NewCredential("general configuration file is unreadable", err)
	}

	s := &stream.Stream{
		NoAuth:  noAuth,
		Environ: a.environ,
		Log:     a.logger(),
	}
	if cfg.Has("start_at") {
		startAt, err := stream.ParseStartPosition(cfg.GetString("start_at"))
		if err != nil {
			return nil, err
		}
		s.StartAt = startAt
	}
	if cfg.Has("poll_timeout") {
		s.PollTimeout = cfg.GetSecond("poll_timeout")
	}
	return s, nil
}
