// Package auth loads, resolves and persists the named credentials used to
// authenticate against brokers.
//
// Credentials live in a TOML file with owner-only permissions:
//
//	[[auth]]
//	username = "user"
//	password = "pass"
//	hostname = "kafka.example.com"
//
// A file that grants group or world access is rejected before its content is
// ever parsed.
package auth

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/alchzh/hop-client/config"
	"github.com/alchzh/hop-client/hoperr"
)

var (
	// ErrNoCredentialFile is returned when the credential file does not exist.
	// Callers that allow anonymous access treat this as "no credentials
	// configured" rather than a failure.
	ErrNoCredentialFile = errors.New("auth: no credential file found")

	// ErrUnsafePermissions is returned when the credential file is readable
	// by group or world. Detected before any content is read.
	ErrUnsafePermissions = errors.New("auth: credential file has unsafe permissions")

	// ErrMalformedFile is returned when the credential file is not valid TOML.
	ErrMalformedFile = errors.New("auth: credential file is not configured correctly")

	// ErrNoAuthSection is returned when the file parses but carries no
	// top-level auth section.
	ErrNoAuthSection = errors.New("auth: credential file contains no auth section")

	// ErrMissingAuthProperty is returned when an auth entry lacks a required
	// property (username or password).
	ErrMissingAuthProperty = errors.New("auth: credential entry is missing auth property")

	// ErrAmbiguousCredential is returned when more than one credential
	// matches a host and no username narrows the choice.
	ErrAmbiguousCredential = errors.New("auth: ambiguous credentials")

	// ErrCredentialNotFound is returned when removing an entry that does not exist.
	ErrCredentialNotFound = errors.New("auth: no matching credential entry")
)

// SASL mechanisms supported by the brokers the client talks to.
const (
	MechanismScramSHA512 = "SCRAM-SHA-512"
	MechanismScramSHA256 = "SCRAM-SHA-256"
	MechanismPlain       = "PLAIN"
)

// unsafeModeMask flags group/world access bits plus setuid/setgid/sticky.
const unsafeModeMask = fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky | 0o077

// Credential is one username/password record, optionally restricted to a
// single broker hostname. An empty Hostname matches any host.
type Credential struct {
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	Hostname      string `toml:"hostname,omitempty"`
	Protocol      string `toml:"protocol,omitempty"`
	Mechanism     string `toml:"mechanism,omitempty"`
	SSLCALocation string `toml:"ssl_ca_location,omitempty"`
}

// UseTLS reports whether connections made with this credential use TLS.
// The SASL_PLAINTEXT protocol disables it.
func (c Credential) UseTLS() bool {
	return c.Protocol != "SASL_PLAINTEXT"
}

// SASLMechanism returns the normalized SASL mechanism name,
// defaulting to SCRAM-SHA-512.
func (c Credential) SASLMechanism() string {
	if c.Mechanism == "" {
		return MechanismScramSHA512
	}
	return strings.ToUpper(strings.ReplaceAll(c.Mechanism, "_", "-"))
}

// Store is an ordered collection of credentials backed by a single TOML file.
// Every mutation is written back immediately; no dirty in-memory state
// survives the process.
type Store struct {
	path  string
	creds []Credential
}

// Load reads a credential store from path.
//
// The failure classes are deliberately distinct so operators can
// self-diagnose: missing file, unsafe permissions, unparseable content,
// a parseable file without an auth section, and an auth entry missing a
// required property each surface their own stable advisory.
func Load(path string) (*Store, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, hoperr.NewCredential(
				fmt.Sprintf("no credential file found at %s", path), ErrNoCredentialFile)
		}
		return nil, hoperr.NewCredential(
			fmt.Sprintf("cannot read credential file at %s", path), err)
	}

	// The permission gate runs before any content is read.
	if info.Mode()&unsafeModeMask != 0 {
		return nil, hoperr.NewCredential(
			fmt.Sprintf("%s has unsafe permissions: %04o; please correct it to 0600",
				path, info.Mode().Perm()), ErrUnsafePermissions)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, hoperr.NewCredential(
			fmt.Sprintf("cannot read credential file at %s", path), err)
	}

	creds, err := parseCredentials(data)
	if err != nil {
		return nil, err
	}

	return &Store{path: path, creds: creds}, nil
}

// LoadDefault reads the credential store from the default per-user location
// for the given environment snapshot. When auth.toml is absent but the
// general config.toml carries an auth section, credentials are read from
// there; this keeps old-style single-file setups working.
func LoadDefault(environ []string) (*Store, error) {
	path := config.Path(environ, "auth")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		general := config.Path(environ, "config")
		if info, err := os.Stat(general); err == nil && info.Mode().IsRegular() {
			s, err := Load(general)
			if err == nil {
				return s, nil
			}
			// a config.toml without an auth section just means no
			// credentials are configured; anything else the operator
			// must hear about, not have silently ignored
			if !errors.Is(err, ErrNoAuthSection) {
				return nil, err
			}
		}
		return nil, hoperr.NewCredential(
			fmt.Sprintf("no credential file found at %s", path), ErrNoCredentialFile)
	}
	return Load(path)
}

func parseCredentials(data []byte) ([]Credential, error) {
	var file struct {
		Auth any `toml:"auth"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, hoperr.NewCredential(
			"credential file is not configured correctly", errors.Join(ErrMalformedFile, err))
	}

	var entries []map[string]any
	switch section := file.Auth.(type) {
	case nil:
		return nil, hoperr.NewCredential(
			"credential file contains no auth section", ErrNoAuthSection)
	case map[string]any:
		// old-style single-table config, upgraded to a one-entry list
		entries = []map[string]any{section}
	case []map[string]any:
		entries = section
	case []any:
		for _, e := range section {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, hoperr.NewCredential(
					"credential file is not configured correctly", ErrMalformedFile)
			}
			entries = append(entries, m)
		}
	default:
		return nil, hoperr.NewCredential(
			"credential file is not configured correctly", ErrMalformedFile)
	}

	creds := make([]Credential, 0, len(entries))
	for _, entry := range entries {
		cred, err := credentialFromEntry(entry)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

func credentialFromEntry(entry map[string]any) (Credential, error) {
	str := func(key string) string {
		if v, ok := entry[key].(string); ok {
			return v
		}
		return ""
	}

	for _, required := range []string{"username", "password"} {
		if _, ok := entry[required]; !ok {
			return Credential{}, hoperr.NewCredential(
				fmt.Sprintf("credential entry is missing auth property %q", required),
				ErrMissingAuthProperty)
		}
	}

	return Credential{
		Username:      str("username"),
		Password:      str("password"),
		Hostname:      str("hostname"),
		Protocol:      str("protocol"),
		Mechanism:     str("mechanism"),
		SSLCALocation: str("ssl_ca_location"),
	}, nil
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Credentials returns the stored credentials in file order.
func (s *Store) Credentials() []Credential {
	out := make([]Credential, len(s.creds))
	copy(out, s.creds)
	return out
}

// Resolve selects the credential to present to the given broker host.
// Credentials bound to the exact hostname out-rank host-agnostic entries;
// a non-empty username narrows the candidates further. No match is not an
// error at this layer: callers decide whether anonymous access is acceptable.
func (s *Store) Resolve(host, username string) (*Credential, error) {
	// credential hostnames never carry ports
	if h, _, err := splitHostPort(host); err == nil {
		host = h
	}

	var exact, loose []Credential
	for _, cred := range s.creds {
		if username != "" && cred.Username != username {
			continue
		}
		switch cred.Hostname {
		case host:
			exact = append(exact, cred)
		case "":
			loose = append(loose, cred)
		}
	}

	matches := exact
	if len(matches) == 0 {
		matches = loose
	}

	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		cred := matches[0]
		return &cred, nil
	default:
		names := make([]string, len(matches))
		for i, m := range matches {
			names[i] = m.Username
		}
		return nil, hoperr.NewCredential(
			fmt.Sprintf("ambiguous credentials found for hostname %q: %s",
				host, strings.Join(names, ", ")), ErrAmbiguousCredential)
	}
}

// Add inserts the credential, replacing any existing entry bound to the same
// hostname and username, and writes the store back immediately. A failed
// write-back leaves the in-memory store untouched.
func (s *Store) Add(cred Credential) error {
	creds := make([]Credential, len(s.creds))
	copy(creds, s.creds)

	replaced := false
	for i, existing := range creds {
		if existing.Hostname == cred.Hostname && existing.Username == cred.Username {
			creds[i] = cred
			replaced = true
			break
		}
	}
	if !replaced {
		creds = append(creds, cred)
	}

	if err := s.save(creds); err != nil {
		return err
	}
	s.creds = creds
	return nil
}

// Remove deletes every entry whose username or hostname matches the given
// value and writes the store back. Removing a non-existent entry fails, and a
// failed write-back leaves the in-memory store untouched.
func (s *Store) Remove(usernameOrHost string) error {
	kept := make([]Credential, 0, len(s.creds))
	removed := 0
	for _, cred := range s.creds {
		if cred.Username == usernameOrHost || (cred.Hostname != "" && cred.Hostname == usernameOrHost) {
			removed++
			continue
		}
		kept = append(kept, cred)
	}
	if removed == 0 {
		return hoperr.NewCredential(
			fmt.Sprintf("no credential entry matching %q", usernameOrHost), ErrCredentialNotFound)
	}

	if err := s.save(kept); err != nil {
		return err
	}
	s.creds = kept
	return nil
}

// NewStore creates an empty store backed by path. Nothing is written until
// the first mutation.
func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) save(creds []Credential) error {
	var file struct {
		Auth []Credential `toml:"auth"`
	}
	file.Auth = creds

	data, err := toml.Marshal(file)
	if err != nil {
		return hoperr.NewCredential("cannot encode credential file", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return hoperr.NewCredential("cannot create configuration directory", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return hoperr.NewCredential("cannot write credential file", err)
	}
	// WriteFile leaves the mode of a pre-existing file alone
	if err := os.Chmod(s.path, 0o600); err != nil {
		return hoperr.NewCredential("cannot restrict credential file permissions", err)
	}
	return nil
}

func splitHostPort(hostport string) (string, string, error) {
	i := strings.LastIndex(hostport, ":")
	if i < 0 {
		return "", "", errors.New("auth: no port")
	}
	return hostport[:i], hostport[i+1:], nil
}
