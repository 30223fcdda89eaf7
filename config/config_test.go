package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDir(t *testing.T) {
	tests := map[string]struct {
		environ []string
		want    string
	}{
		"XDG_CONFIG_HOME takes precedence": {
			environ: []string{"XDG_CONFIG_HOME=/tmp/xdg", "HOME=/home/user"},
			want:    filepath.Join("/tmp/xdg", "hop"),
		},
		"falls back to HOME": {
			environ: []string{"HOME=/home/user"},
			want:    filepath.Join("/home/user", ".config", "hop"),
		},
		"empty XDG_CONFIG_HOME is ignored": {
			environ: []string{"XDG_CONFIG_HOME=", "HOME=/home/user"},
			want:    filepath.Join("/home/user", ".config", "hop"),
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.want, Dir(tc.environ))
		})
	}
}

func TestPath(t *testing.T) {
	environ := []string{"XDG_CONFIG_HOME=/tmp/xdg"}
	require.Equal(t, filepath.Join("/tmp/xdg", "hop", "auth.toml"), Path(environ, "auth"))
	require.Equal(t, filepath.Join("/tmp/xdg", "hop", "config.toml"), Path(environ, "config"))
}

func TestLoadFileMissingIsEmpty(t *testing.T) {
	c, err := LoadFile(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	require.False(t, c.Has("start_at"))
	require.Equal(t, "", c.GetString("start_at"))
	require.Equal(t, 0, c.GetInt("poll_timeout"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := "start_at = \"latest\"\npoll_timeout = 30\nfancy = true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)

	require.True(t, c.Has("start_at"))
	require.Equal(t, "latest", c.GetString("start_at"))
	require.Equal(t, 30, c.GetInt("poll_timeout"))
	require.Equal(t, 30*time.Second, c.GetSecond("poll_timeout"))
	require.True(t, c.GetBool("fancy"))
	require.False(t, c.Has("missing"))
}

func TestLoadFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("start_at = [unclosed"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
}

func TestLoadUsesEnvironSnapshot(t *testing.T) {
	dir := t.TempDir()
	hopDir := filepath.Join(dir, "hop")
	require.NoError(t, os.MkdirAll(hopDir, 0o700))
	require.NoError(t, os.WriteFile(
		filepath.Join(hopDir, "config.toml"), []byte("start_at = \"latest\"\n"), 0o644))

	c, err := Load([]string{"XDG_CONFIG_HOME=" + dir})
	require.NoError(t, err)
	require.Equal(t, "latest", c.GetString("start_at"))
}
