// Package address parses and validates broker URLs of the form
//
//	kafka://[groupid@]host[:port]/topic[,topic2[,...]]
//
// identifying exactly one broker, an optional consumer group and zero or
// more topics.
package address

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/alchzh/hop-client/hoperr"
)

// DefaultPort is appended to broker hosts that carry no explicit port.
const DefaultPort = "9092"

var (
	// ErrInvalidURL is returned when the value is not a well-formed broker URL.
	ErrInvalidURL = errors.New("address: invalid kafka URL")

	// ErrInvalidScheme is returned when the URL scheme is not a supported transport.
	ErrInvalidScheme = errors.New("address: URL must start with 'kafka://'")

	// ErrMultipleBrokers is returned when the URL names more than one broker host.
	ErrMultipleBrokers = errors.New("address: multiple broker addresses are not supported")

	// ErrNoTopics is returned by operations that require at least one topic.
	ErrNoTopics = errors.New("address: no topic(s) specified in kafka URL")
)

// Address identifies one broker, an optional consumer group and the topics
// named in the URL. Topics may be empty for operations that accept "all
// accessible topics".
type Address struct {
	Scheme  string
	GroupID string
	Host    string
	Port    string
	Topics  []string
	Raw     string
}

// Parse extracts the group ID, broker address and topic names from a broker URL.
//
// A URL naming more than one comma-separated broker host is rejected with
// ErrMultipleBrokers; a shared topic list over multiple brokers is not a
// supported configuration.
func Parse(raw string) (*Address, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, hoperr.NewAddress(fmt.Sprintf("invalid kafka URL %q", raw), errors.Join(ErrInvalidURL, err))
	}

	if u.Scheme != "kafka" {
		return nil, hoperr.NewAddress("invalid kafka URL: must start with 'kafka://'", ErrInvalidScheme)
	}

	group := ""
	if u.User != nil {
		group = u.User.Username()
	}

	hostport := u.Host
	if hostport == "" {
		return nil, hoperr.NewAddress("invalid kafka URL: no broker host", ErrInvalidURL)
	}
	if strings.Contains(hostport, ",") {
		return nil, hoperr.NewAddress("multiple broker addresses are not supported", ErrMultipleBrokers)
	}

	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		host, port = hostport, ""
	}
	if host == "" {
		return nil, hoperr.NewAddress("invalid kafka URL: no broker host", ErrInvalidURL)
	}

	var topics []string
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		for _, t := range strings.Split(p, ",") {
			if t == "" {
				return nil, hoperr.NewAddress(fmt.Sprintf("invalid kafka URL: empty topic name in %q", u.Path), ErrInvalidURL)
			}
			topics = append(topics, t)
		}
	}

	return &Address{
		Scheme:  u.Scheme,
		GroupID: group,
		Host:    host,
		Port:    port,
		Topics:  topics,
		Raw:     raw,
	}, nil
}

// Broker returns the host:port to bootstrap from, applying the default
// Kafka port when the URL does not carry one.
func (a *Address) Broker() string {
	port := a.Port
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(a.Host, port)
}

// Key returns the normalized identity of the address: broker plus topics.
// The consumer group does not participate, so two addresses differing only
// in group resolve to the same credentials.
func (a *Address) Key() string {
	return a.Broker() + "/" + strings.Join(a.Topics, ",")
}

// RequireTopics returns ErrNoTopics when the address names no topics.
func (a *Address) RequireTopics() error {
	if len(a.Topics) == 0 {
		return hoperr.NewAddress("no topic(s) specified in kafka URL", ErrNoTopics)
	}
	return nil
}
