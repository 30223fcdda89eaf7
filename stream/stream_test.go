package stream

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/alchzh/hop-client/auth"
	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
	"github.com/alchzh/hop-client/message"
)

type readerMock struct {
	queue      []kafka.Message
	fetchErr   error
	fetchCount int

	commits   []kafka.Message
	commitErr error

	closeCount int
}

func (r *readerMock) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.fetchCount++
	if r.fetchErr != nil {
		return kafka.Message{}, r.fetchErr
	}
	if len(r.queue) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.queue[0]
	r.queue = r.queue[1:]
	return m, nil
}

func (r *readerMock) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	if r.commitErr != nil {
		return r.commitErr
	}
	r.commits = append(r.commits, msgs...)
	return nil
}

func (r *readerMock) Close() error {
	r.closeCount++
	return nil
}

type writerMock struct {
	msgs       []kafka.Message
	writeErr   error
	closeCount int
}

func (w *writerMock) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.writeErr != nil {
		return w.writeErr
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *writerMock) Close() error {
	w.closeCount++
	return nil
}

type clientMock struct {
	resp *kafka.MetadataResponse
	err  error
}

func (c *clientMock) Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error) {
	return c.resp, c.err
}

type factoryMock struct {
	reader *readerMock
	writer *writerMock
	client *clientMock

	readerCfg   ReaderConfig
	writerCfg   WriterConfig
	clientCfg   ClientConfig
	clientCalls int
}

func (f *factoryMock) NewReader(cfg ReaderConfig) (Reader, error) {
	f.readerCfg = cfg
	return f.reader, nil
}

func (f *factoryMock) NewWriter(cfg WriterConfig) (Writer, error) {
	f.writerCfg = cfg
	return f.writer, nil
}

func (f *factoryMock) NewClient(cfg ClientConfig) (MetadataClient, error) {
	f.clientCfg = cfg
	f.clientCalls++
	return f.client, nil
}

func newFactoryMock() *factoryMock {
	return &factoryMock{
		reader: &readerMock{},
		writer: &writerMock{},
		client: &clientMock{resp: &kafka.MetadataResponse{}},
	}
}

// blobWire serializes a BLOB payload into its wire envelope.
func blobWire(t *testing.T, text string) []byte {
	t.Helper()
	wire, err := message.BlobFromText(text).Serialize()
	require.NoError(t, err)
	return wire
}

func TestParseStartPosition(t *testing.T) {
	for raw, want := range map[string]StartPosition{
		"earliest": StartEarliest,
		"EARLIEST": StartEarliest,
		"latest":   StartLatest,
		"Latest":   StartLatest,
	} {
		got, err := ParseStartPosition(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	_, err := ParseStartPosition("beginning")
	require.Equal(t, hoperr.TypeUsage, hoperr.TypeOf(err))

	require.Equal(t, "earliest", StartEarliest.String())
	require.Equal(t, "latest", StartLatest.String())
}

func TestOpenProducer(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, f *factoryMock, s *Stream){
		"passes broker and topic to the transport": testProducerTransportConfig,
		"rejects a URL without topics":             testProducerRejectsNoTopics,
		"rejects a URL with multiple topics":       testProducerRejectsMultipleTopics,
		"warns when the URL names a group":         testProducerWarnsOnGroup,
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newFactoryMock()
			log, _ := logger.NewNullLogger()
			s := &Stream{NoAuth: true, Factory: f, Log: log}
			fn(t, f, s)
		})
	}
}

func testProducerTransportConfig(t *testing.T, f *factoryMock, s *Stream) {
	p, err := s.OpenProducer(context.Background(), "kafka://example.com:9093/alerts")
	require.NoError(t, err)
	defer p.Close()

	require.Equal(t, "example.com:9093", f.writerCfg.Broker)
	require.Equal(t, "alerts", f.writerCfg.Topic)
	require.Nil(t, f.writerCfg.Credential)
	require.Equal(t, "alerts", p.Topic())
}

func testProducerRejectsNoTopics(t *testing.T, f *factoryMock, s *Stream) {
	_, err := s.OpenProducer(context.Background(), "kafka://example.com/")
	require.Equal(t, hoperr.TypeAddress, hoperr.TypeOf(err))
}

func testProducerRejectsMultipleTopics(t *testing.T, f *factoryMock, s *Stream) {
	_, err := s.OpenProducer(context.Background(), "kafka://example.com/alpha,beta")
	require.Equal(t, hoperr.TypeUsage, hoperr.TypeOf(err))
	require.Equal(t, "must specify exactly one topic in write mode", hoperr.Advisory(err))
}

func testProducerWarnsOnGroup(t *testing.T, f *factoryMock, s *Stream) {
	log, hook := logger.NewNullLogger()
	s.Log = log

	_, err := s.OpenProducer(context.Background(), "kafka://mygroup@example.com/alerts")
	require.NoError(t, err)

	require.NotNil(t, hook.LastEntry())
	require.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	require.Contains(t, hook.LastEntry().Message, "group ID has no effect")
}

func TestOpenConsumer(t *testing.T) {
	for scenario, fn := range map[string]func(t *testing.T, f *factoryMock, s *Stream){
		"explicit group outranks the URL group": testConsumerGroupPrecedence,
		"group is taken from the URL":           testConsumerGroupFromURL,
		"group is generated when unset":         testConsumerGroupGenerated,
		"start position reaches the transport":  testConsumerStartPosition,
		"rejects a URL without topics":          testConsumerRejectsNoTopics,
	} {
		t.Run(scenario, func(t *testing.T) {
			f := newFactoryMock()
			log, _ := logger.NewNullLogger()
			s := &Stream{NoAuth: true, Factory: f, Log: log}
			fn(t, f, s)
		})
	}
}

func testConsumerGroupPrecedence(t *testing.T, f *factoryMock, s *Stream) {
	c, err := s.OpenConsumer(context.Background(), "kafka://urlgroup@example.com/alerts", "flaggroup")
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "flaggroup", c.GroupID())
	require.Equal(t, "flaggroup", f.readerCfg.GroupID)
}

func testConsumerGroupFromURL(t *testing.T, f *factoryMock, s *Stream) {
	c, err := s.OpenConsumer(context.Background(), "kafka://urlgroup@example.com/alerts", "")
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, "urlgroup", c.GroupID())
}

func testConsumerGroupGenerated(t *testing.T, f *factoryMock, s *Stream) {
	log, hook := logger.NewNullLogger()
	s.Log = log

	c, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "")
	require.NoError(t, err)
	defer c.Close()

	require.Len(t, c.GroupID(), 10)

	require.NotNil(t, hook.LastEntry())
	require.Contains(t, hook.LastEntry().Message, "generating a random group ID")

	// a second unnamed session reads independently
	c2, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "")
	require.NoError(t, err)
	defer c2.Close()
	require.NotEqual(t, c.GroupID(), c2.GroupID())
}

func testConsumerStartPosition(t *testing.T, f *factoryMock, s *Stream) {
	s.StartAt = StartLatest

	c, err := s.OpenConsumer(context.Background(), "kafka://example.com/alpha,beta", "g")
	require.NoError(t, err)
	defer c.Close()

	require.Equal(t, StartLatest, f.readerCfg.StartAt)
	require.Equal(t, []string{"alpha", "beta"}, f.readerCfg.Topics)
}

func testConsumerRejectsNoTopics(t *testing.T, f *factoryMock, s *Stream) {
	_, err := s.OpenConsumer(context.Background(), "kafka://example.com/", "g")
	require.Equal(t, hoperr.TypeAddress, hoperr.TypeOf(err))
}

func TestGeneratedGroupCarriesUsername(t *testing.T) {
	store := auth.NewStore(filepath.Join(t.TempDir(), "auth.toml"))
	require.NoError(t, store.Add(auth.Credential{Username: "alice", Password: "secret"}))

	f := newFactoryMock()
	log, _ := logger.NewNullLogger()
	s := &Stream{Credentials: store, Factory: f, Log: log}

	c, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "")
	require.NoError(t, err)
	defer c.Close()

	require.True(t, strings.HasPrefix(c.GroupID(), "alice-"))
	require.NotNil(t, f.readerCfg.Credential)
	require.Equal(t, "alice", f.readerCfg.Credential.Username)
}

func TestBrokenCredentialStoreIsFatal(t *testing.T) {
	dir := t.TempDir()
	hopDir := filepath.Join(dir, "hop")
	require.NoError(t, writeWorldReadable(hopDir))

	f := newFactoryMock()
	log, _ := logger.NewNullLogger()
	s := &Stream{Factory: f, Log: log, Environ: []string{"XDG_CONFIG_HOME=" + dir}}

	_, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "g")
	require.ErrorIs(t, err, auth.ErrUnsafePermissions)

	_, err = s.OpenProducer(context.Background(), "kafka://example.com/alerts")
	require.ErrorIs(t, err, auth.ErrUnsafePermissions)
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	f := newFactoryMock()
	log, _ := logger.NewNullLogger()
	s := &Stream{NoAuth: true, Factory: f, Log: log, PollTimeout: 20 * time.Millisecond}

	p, err := s.OpenProducer(context.Background(), "kafka://example.com/alerts")
	require.NoError(t, err)

	contents := []any{
		"a plain string",
		[]any{"a", "list"},
		map[string]any{"nested": "mapping"},
	}
	for _, content := range contents {
		require.NoError(t, p.Write(context.Background(), &message.Blob{Content: content}))
	}
	require.NoError(t, p.Close())

	// everything the producer wrote arrives at the consumer, in write order
	f.reader.queue = append(f.reader.queue, f.writer.msgs...)

	c, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "g")
	require.NoError(t, err)
	defer c.Close()

	var got []any
	for {
		msg, _, err := c.Next(context.Background())
		if err != nil {
			require.ErrorIs(t, err, ErrEndOfStream)
			break
		}
		got = append(got, msg.(*message.Blob).Content)
	}
	require.Equal(t, contents, got)
}

// writeWorldReadable plants a credential file that must be rejected by the
// permission gate.
func writeWorldReadable(hopDir string) error {
	if err := os.MkdirAll(hopDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(hopDir, "auth.toml"),
		[]byte("[[auth]]\nusername = \"u\"\npassword = \"p\"\n"), 0o644)
}

func TestNoMatchingCredentialIsFatal(t *testing.T) {
	// every entry is bound to a different broker, so authenticated intent
	// cannot be satisfied and must not degrade to an anonymous session
	store := auth.NewStore(filepath.Join(t.TempDir(), "auth.toml"))
	require.NoError(t, store.Add(auth.Credential{
		Username: "bound", Password: "secret", Hostname: "kafka.example.com",
	}))

	f := newFactoryMock()
	log, _ := logger.NewNullLogger()
	s := &Stream{Credentials: store, Factory: f, Log: log}

	_, err := s.OpenConsumer(context.Background(), "kafka://other.example.com/alerts", "g")
	require.ErrorIs(t, err, auth.ErrCredentialNotFound)
	require.Equal(t, hoperr.TypeCredential, hoperr.TypeOf(err))
	require.Contains(t, hoperr.Advisory(err), `no matching credential found for hostname "other.example.com"`)

	_, err = s.OpenProducer(context.Background(), "kafka://other.example.com/alerts")
	require.ErrorIs(t, err, auth.ErrCredentialNotFound)

	// the matching broker still opens authenticated
	c, err := s.OpenConsumer(context.Background(), "kafka://kafka.example.com/alerts", "g")
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, f.readerCfg.Credential)

	// NoAuth stays the explicit anonymous path
	s.NoAuth = true
	c2, err := s.OpenConsumer(context.Background(), "kafka://other.example.com/alerts", "g")
	require.NoError(t, err)
	defer c2.Close()
	require.Nil(t, f.readerCfg.Credential)
}

func TestPollTimeoutDefaults(t *testing.T) {
	f := newFactoryMock()
	log, _ := logger.NewNullLogger()

	s := &Stream{NoAuth: true, Factory: f, Log: log}
	c, err := s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "g")
	require.NoError(t, err)
	require.Equal(t, DefaultPollTimeout, c.pollTimeout)

	s.PollTimeout = PollForever
	c, err = s.OpenConsumer(context.Background(), "kafka://example.com/alerts", "g")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), c.pollTimeout)
}
