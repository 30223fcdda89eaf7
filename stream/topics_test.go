package stream

import (
	"context"
	"errors"
	"testing"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"github.com/alchzh/hop-client/address"
	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
)

func metadataWith(topics ...kafka.Topic) *kafka.MetadataResponse {
	return &kafka.MetadataResponse{Topics: topics}
}

func newTopicsStream(f *factoryMock) *Stream {
	log, _ := logger.NewNullLogger()
	return &Stream{NoAuth: true, Factory: f, Log: log}
}

func TestListTopics(t *testing.T) {
	f := newFactoryMock()
	f.client.resp = metadataWith(
		kafka.Topic{Name: "foo"},
		kafka.Topic{Name: "bar"},
		kafka.Topic{Name: "__consumer_offsets", Internal: true},
		kafka.Topic{Name: "locked", Error: errors.New("topic authorization failed")},
	)
	s := newTopicsStream(f)

	topics, err := s.ListTopics(context.Background(), "kafka://example.com/")
	require.NoError(t, err)

	require.Equal(t, []string{"foo", "bar", "locked"}, topics.Names())
	require.True(t, topics.Accessible("foo"))
	require.True(t, topics.Accessible("bar"))
	require.False(t, topics.Accessible("locked"))
	require.False(t, topics.Accessible("__consumer_offsets"))
	require.Equal(t, 3, topics.Len())

	require.Equal(t, "example.com:9092", f.clientCfg.Broker)
}

func TestListTopicsRestrictedToQuery(t *testing.T) {
	f := newFactoryMock()
	f.client.resp = metadataWith(
		kafka.Topic{Name: "foo"},
		kafka.Topic{Name: "bar"},
	)
	s := newTopicsStream(f)

	// "baz" is not reported by the broker, so it is simply absent
	topics, err := s.ListTopics(context.Background(), "kafka://example.com/foo,baz")
	require.NoError(t, err)

	require.Equal(t, []string{"foo"}, topics.Names())
	require.True(t, topics.Accessible("foo"))
	require.False(t, topics.Accessible("baz"))
}

func TestListTopicsRejectsMultipleBrokersBeforeDialing(t *testing.T) {
	f := newFactoryMock()
	s := newTopicsStream(f)

	_, err := s.ListTopics(context.Background(), "kafka://one.example.com,two.example.com/topic")
	require.ErrorIs(t, err, address.ErrMultipleBrokers)
	require.Equal(t, 0, f.clientCalls)
}

func TestListTopicsMetadataFailure(t *testing.T) {
	f := newFactoryMock()
	f.client.err = errors.New("dial tcp: connection refused")
	s := newTopicsStream(f)

	_, err := s.ListTopics(context.Background(), "kafka://example.com/")
	require.Equal(t, hoperr.TypeTransport, hoperr.TypeOf(err))
	require.Contains(t, hoperr.Advisory(err), "cannot query broker for topics")
}

func TestTopicSetAdd(t *testing.T) {
	set := &TopicSet{}
	set.Add("foo", true)
	set.Add("bar", false)
	set.Add("foo", false)

	require.Equal(t, []string{"foo", "bar"}, set.Names())
	require.False(t, set.Accessible("foo"))
	require.Equal(t, 2, set.Len())
}
