package stream

import (
	"context"

	kafka "github.com/segmentio/kafka-go"

	"github.com/alchzh/hop-client/address"
	"github.com/alchzh/hop-client/hoperr"
)

// TopicSet maps topic names to their accessibility, preserving the order in
// which the broker reported them.
type TopicSet struct {
	names  []string
	access map[string]bool
}

// Add records a topic. Re-adding a known topic only updates its
// accessibility.
func (t *TopicSet) Add(name string, accessible bool) {
	if t.access == nil {
		t.access = make(map[string]bool)
	}
	if _, seen := t.access[name]; !seen {
		t.names = append(t.names, name)
	}
	t.access[name] = accessible
}

// Names returns the topic names in broker-reported order.
func (t *TopicSet) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Accessible reports whether the named topic is present and accessible.
func (t *TopicSet) Accessible(name string) bool {
	return t.access[name]
}

// Len returns the number of topics in the set.
func (t *TopicSet) Len() int {
	return len(t.names)
}

// ListTopics queries the broker named by the URL for the topics the resolved
// credential can access. When the URL names specific topics the result is
// restricted to exactly those; topics the broker does not report are simply
// absent. A URL naming multiple brokers is rejected before any network call.
func (s *Stream) ListTopics(ctx context.Context, rawURL string) (*TopicSet, error) {
	addr, err := address.Parse(rawURL)
	if err != nil {
		return nil, err
	}

	cred, err := s.credential(addr)
	if err != nil {
		return nil, err
	}

	client, err := s.factory().NewClient(ClientConfig{
		Broker:     addr.Broker(),
		Credential: cred,
	})
	if err != nil {
		return nil, err
	}

	resp, err := client.Metadata(ctx, &kafka.MetadataRequest{})
	if err != nil {
		return nil, hoperr.NewTransport("cannot query broker for topics", err)
	}

	var query map[string]bool
	if len(addr.Topics) > 0 {
		query = make(map[string]bool, len(addr.Topics))
		for _, t := range addr.Topics {
			query[t] = true
		}
	}

	set := &TopicSet{}
	for _, topic := range resp.Topics {
		if topic.Internal {
			continue
		}
		if query != nil && !query[topic.Name] {
			continue
		}
		set.Add(topic.Name, topic.Error == nil)
	}
	return set, nil
}
