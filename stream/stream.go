// Package stream opens read and write sessions against a broker, wrapping
// payloads through the message codec and resolving credentials on the way in.
//
// A session is either a Producer or a Consumer, never both; each owns its
// transport connection exclusively and must be closed to release it.
package stream

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/alchzh/hop-client/address"
	"github.com/alchzh/hop-client/auth"
	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
	"github.com/alchzh/hop-client/internal/pkg/uid"
)

// DefaultPollTimeout bounds how long a non-persistent consumer waits for
// further messages before reporting end of stream.
const DefaultPollTimeout = 10 * time.Second

// PollForever disables the poll timeout so a consumer blocks until the next
// message arrives or its context is cancelled.
const PollForever time.Duration = -1

// StartPosition selects where a consumer starts in a topic when its group
// has no bookmarked offset yet. Once a position has been committed, the
// bookmark wins on subsequent opens.
type StartPosition int

const (
	// StartEarliest begins at the oldest retained message.
	StartEarliest StartPosition = iota
	// StartLatest begins at the head of the topic.
	StartLatest
)

// String returns the lowercase name of the position.
func (s StartPosition) String() string {
	if s == StartLatest {
		return "latest"
	}
	return "earliest"
}

// ParseStartPosition canonicalizes a user-supplied start position.
func ParseStartPosition(s string) (StartPosition, error) {
	switch strings.ToLower(s) {
	case "earliest":
		return StartEarliest, nil
	case "latest":
		return StartLatest, nil
	default:
		return StartEarliest, hoperr.NewUsage(fmt.Sprintf("unknown start position %q", s), nil)
	}
}

// Stream holds session defaults applied when a connection is opened.
// The zero value authenticates from the default credential store, starts at
// the earliest unread message and gives up ten seconds after the stream runs
// dry.
type Stream struct {
	// Credentials overrides the store loaded from the default location.
	Credentials *auth.Store

	// NoAuth disables authentication entirely.
	NoAuth bool

	// StartAt selects the start position for consumers without a bookmark.
	StartAt StartPosition

	// Persist durably commits consumer positions as messages are delivered.
	Persist bool

	// PollTimeout bounds the wait for further messages in read mode; zero
	// selects DefaultPollTimeout and PollForever disables the bound.
	PollTimeout time.Duration

	// Factory constructs transport connections; nil selects kafka-go.
	Factory TransportFactory

	// Environ is the environment snapshot used to locate the default
	// credential store; nil snapshots the process environment.
	Environ []string

	// Log receives session lifecycle events.
	Log logger.Log
}

// OpenProducer opens a write-mode session. The address must name exactly one
// topic; a consumer group in the URL has no effect in write mode.
func (s *Stream) OpenProducer(ctx context.Context, rawURL string) (*Producer, error) {
	addr, err := address.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if err := addr.RequireTopics(); err != nil {
		return nil, err
	}
	if len(addr.Topics) != 1 {
		return nil, hoperr.NewUsage("must specify exactly one topic in write mode", nil)
	}

	log := s.logger().WithFields(logger.Fields{
		logger.FieldPackage: "stream",
		"broker":            addr.Broker(),
		"topic":             addr.Topics[0],
	})
	if addr.GroupID != "" {
		log.Warn("group ID has no effect when opening a stream in write mode")
	}

	cred, err := s.credential(addr)
	if err != nil {
		return nil, err
	}

	writer, err := s.factory().NewWriter(WriterConfig{
		Broker:     addr.Broker(),
		Topic:      addr.Topics[0],
		Credential: cred,
	})
	if err != nil {
		return nil, err
	}

	log.Debug("opened producer")
	return &Producer{
		writer: writer,
		topic:  addr.Topics[0],
		log:    log,
	}, nil
}

// OpenConsumer opens a read-mode session over the one-or-more topics named by
// the address. The consumer group is taken from groupID, then from the URL,
// and finally generated at random so an unnamed session reads independently.
func (s *Stream) OpenConsumer(ctx context.Context, rawURL, groupID string) (*Consumer, error) {
	addr, err := address.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	if err := addr.RequireTopics(); err != nil {
		return nil, err
	}

	cred, err := s.credential(addr)
	if err != nil {
		return nil, err
	}

	group := groupID
	if group == "" {
		group = addr.GroupID
	}
	log := s.logger().WithFields(logger.Fields{
		logger.FieldPackage: "stream",
		"broker":            addr.Broker(),
		"topics":            strings.Join(addr.Topics, ","),
	})
	if group == "" {
		username := ""
		if cred != nil {
			username = cred.Username
		}
		group = uid.NewGroupID().Generate(username)
		log.WithField("group_id", group).Info("group ID not specified, generating a random group ID")
	}

	pollTimeout := s.PollTimeout
	if pollTimeout == 0 {
		pollTimeout = DefaultPollTimeout
	} else if pollTimeout < 0 {
		pollTimeout = 0
	}

	reader, err := s.factory().NewReader(ReaderConfig{
		Broker:     addr.Broker(),
		GroupID:    group,
		Topics:     addr.Topics,
		StartAt:    s.StartAt,
		Credential: cred,
	})
	if err != nil {
		return nil, err
	}

	log.WithField("group_id", group).Debug("opened consumer")
	return &Consumer{
		reader:      reader,
		groupID:     group,
		persist:     s.Persist,
		pollTimeout: pollTimeout,
		log:         log,
	}, nil
}

// credential resolves which credential to present for the address. A broken
// credential store is fatal here, and so is a configured store that matches
// nothing for the host: authenticated intent must never silently degrade to
// anonymous access. NoAuth is the only anonymous path.
func (s *Stream) credential(addr *address.Address) (*auth.Credential, error) {
	if s.NoAuth {
		return nil, nil
	}

	store := s.Credentials
	if store == nil {
		var err error
		store, err = auth.LoadDefault(s.environ())
		if err != nil {
			return nil, err
		}
	}

	cred, err := store.Resolve(addr.Host, "")
	if err != nil {
		return nil, err
	}
	if cred == nil && len(store.Credentials()) > 0 {
		return nil, hoperr.NewCredential(
			fmt.Sprintf("no matching credential found for hostname %q", addr.Host),
			auth.ErrCredentialNotFound)
	}
	return cred, nil
}

func (s *Stream) factory() TransportFactory {
	if s.Factory != nil {
		return s.Factory
	}
	return KafkaFactory{}
}

func (s *Stream) environ() []string {
	if s.Environ != nil {
		return s.Environ
	}
	return os.Environ()
}

func (s *Stream) logger() logger.Log {
	if s.Log != nil {
		return s.Log
	}
	return logger.New(io.Discard, logrus.PanicLevel)
}
