// Package config resolves the client configuration directory from an
// environment snapshot and reads the optional general configuration file.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appDir = "hop"

// Dir determines the per-user configuration directory from an environment
// snapshot (as produced by os.Environ). XDG_CONFIG_HOME takes precedence,
// falling back to $HOME/.config.
func Dir(environ []string) string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}

	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, appDir)
	}
	return filepath.Join(env["HOME"], ".config", appDir)
}

// Path returns the location of a named configuration file, e.g.
// Path(environ, "auth") -> ~/.config/hop/auth.toml.
func Path(environ []string, name string) string {
	return filepath.Join(Dir(environ), name+".toml")
}

// Client holds the general client configuration read from config.toml.
// All getters return zero values when the file is absent or the key unset.
type Client struct {
	v *viper.Viper
}

// Load reads the general configuration file for the given environment
// snapshot. A missing file is not an error; a present but unreadable one is.
func Load(environ []string) (*Client, error) {
	return LoadFile(Path(environ, "config"))
}

// LoadFile reads the general configuration from an explicit path.
func LoadFile(path string) (*Client, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Client{v: v}, nil
		}
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return &Client{v: v}, nil
}

// Has reports whether the key is present in the configuration.
func (c *Client) Has(key string) bool {
	return c.v.IsSet(key)
}

// GetString returns the value for key as a string.
func (c *Client) GetString(key string) string {
	return c.v.GetString(key)
}

// GetBool returns the value for key as a bool.
func (c *Client) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetInt returns the value for key as an int.
func (c *Client) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetSecond returns the value for key as a duration in seconds.
func (c *Client) GetSecond(key string) time.Duration {
	return time.Duration(c.v.GetInt64(key)) * time.Second
}
