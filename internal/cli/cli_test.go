package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alchzh/hop-client/message"
)

func TestRootRegistersCommands(t *testing.T) {
	root := New()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	for _, want := range []string{"publish", "subscribe", "list-topics", "auth", "configure", "version"} {
		require.Contains(t, names, want)
	}
}

func TestVersionCommand(t *testing.T) {
	a := &app{}
	cmd := a.versionCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.Run(cmd, nil)

	require.Contains(t, out.String(), "hop version "+Version)
}

func TestAuthLocate(t *testing.T) {
	a := &app{environ: []string{"XDG_CONFIG_HOME=/tmp/xdg"}}
	cmd := a.authLocateCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	require.Equal(t, "/tmp/xdg/hop/auth.toml\n", out.String())
}

func TestConfigureLocate(t *testing.T) {
	a := &app{environ: []string{"XDG_CONFIG_HOME=/tmp/xdg"}}
	cmd := a.configureLocateCmd()

	var out bytes.Buffer
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	require.Equal(t, "/tmp/xdg/hop/config.toml\n", out.String())
}

func TestRenderMessage(t *testing.T) {
	blob, err := message.Load(message.FormatBlob, `{"event": "burst"}`)
	require.NoError(t, err)
	text, err := renderMessage(blob)
	require.NoError(t, err)
	require.JSONEq(t, `{"event": "burst"}`, text)

	circular, err := message.ParseCircular("TITLE: GCN CIRCULAR\n\nbody text")
	require.NoError(t, err)
	text, err = renderMessage(circular)
	require.NoError(t, err)
	require.Contains(t, text, "TITLE: GCN CIRCULAR")
	require.Contains(t, text, "body text")

	raw := &message.Raw{Content: []byte("raw bytes")}
	text, err = renderMessage(raw)
	require.NoError(t, err)
	require.Equal(t, "raw bytes", text)
}
