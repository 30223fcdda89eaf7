package stream

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/alchzh/hop-client/auth"
	"github.com/alchzh/hop-client/hoperr"
)

// Reader is a transactional message reader. kafka.Reader implements it.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is an acknowledged message writer. kafka.Writer implements it.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MetadataClient answers broker metadata queries. kafka.Client implements it.
type MetadataClient interface {
	Metadata(ctx context.Context, req *kafka.MetadataRequest) (*kafka.MetadataResponse, error)
}

// ReaderConfig describes one consumer connection.
type ReaderConfig struct {
	Broker     string
	GroupID    string
	Topics     []string
	StartAt    StartPosition
	MaxWait    time.Duration
	Credential *auth.Credential
}

// WriterConfig describes one producer connection.
type WriterConfig struct {
	Broker     string
	Topic      string
	Credential *auth.Credential
}

// ClientConfig describes one metadata query connection.
type ClientConfig struct {
	Broker     string
	Credential *auth.Credential
}

// TransportFactory constructs the underlying broker connections. The engine
// depends on this capability interface rather than concrete I/O so tests can
// substitute in-memory transports.
type TransportFactory interface {
	NewReader(cfg ReaderConfig) (Reader, error)
	NewWriter(cfg WriterConfig) (Writer, error)
	NewClient(cfg ClientConfig) (MetadataClient, error)
}

// KafkaFactory builds real kafka-go connections.
type KafkaFactory struct{}

// NewReader constructs a consumer-group kafka.Reader.
func (KafkaFactory) NewReader(cfg ReaderConfig) (Reader, error) {
	dialer, err := newDialer(cfg.Credential)
	if err != nil {
		return nil, err
	}

	startOffset := kafka.FirstOffset
	if cfg.StartAt == StartLatest {
		startOffset = kafka.LastOffset
	}

	rc := kafka.ReaderConfig{
		Brokers:     []string{cfg.Broker},
		GroupID:     cfg.GroupID,
		StartOffset: startOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
		Dialer:      dialer,
	}
	if cfg.MaxWait > 0 {
		rc.MaxWait = cfg.MaxWait
	}
	if len(cfg.Topics) == 1 {
		rc.Topic = cfg.Topics[0]
	} else {
		rc.GroupTopics = cfg.Topics
	}

	return kafka.NewReader(rc), nil
}

// NewWriter constructs a kafka.Writer that waits for full acknowledgment of
// every produced message.
func (KafkaFactory) NewWriter(cfg WriterConfig) (Writer, error) {
	transport, err := newTransport(cfg.Credential)
	if err != nil {
		return nil, err
	}

	return &kafka.Writer{
		Addr:         kafka.TCP(cfg.Broker),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Transport:    transport,
	}, nil
}

// NewClient constructs a kafka.Client for metadata queries.
func (KafkaFactory) NewClient(cfg ClientConfig) (MetadataClient, error) {
	transport, err := newTransport(cfg.Credential)
	if err != nil {
		return nil, err
	}

	return &kafka.Client{
		Addr:      kafka.TCP(cfg.Broker),
		Timeout:   10 * time.Second,
		Transport: transport,
	}, nil
}

func newDialer(cred *auth.Credential) (*kafka.Dialer, error) {
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	if cred == nil {
		return dialer, nil
	}

	mech, err := saslMechanism(cred)
	if err != nil {
		return nil, err
	}
	dialer.SASLMechanism = mech

	if cred.UseTLS() {
		tlsConfig, err := newTLSConfig(cred)
		if err != nil {
			return nil, err
		}
		dialer.TLS = tlsConfig
	}
	return dialer, nil
}

func newTransport(cred *auth.Credential) (*kafka.Transport, error) {
	transport := &kafka.Transport{}
	if cred == nil {
		return transport, nil
	}

	mech, err := saslMechanism(cred)
	if err != nil {
		return nil, err
	}
	transport.SASL = mech

	if cred.UseTLS() {
		tlsConfig, err := newTLSConfig(cred)
		if err != nil {
			return nil, err
		}
		transport.TLS = tlsConfig
	}
	return transport, nil
}

func saslMechanism(cred *auth.Credential) (sasl.Mechanism, error) {
	switch cred.SASLMechanism() {
	case auth.MechanismPlain:
		return plain.Mechanism{Username: cred.Username, Password: cred.Password}, nil
	case auth.MechanismScramSHA256:
		return newScram(scram.SHA256, cred)
	case auth.MechanismScramSHA512:
		return newScram(scram.SHA512, cred)
	default:
		return nil, hoperr.NewCredential(
			fmt.Sprintf("unsupported SASL mechanism %q", cred.Mechanism),
			errors.New("stream: unsupported SASL mechanism"))
	}
}

func newScram(algo scram.Algorithm, cred *auth.Credential) (sasl.Mechanism, error) {
	mech, err := scram.Mechanism(algo, cred.Username, cred.Password)
	if err != nil {
		return nil, hoperr.NewCredential("cannot initialize SASL SCRAM mechanism", err)
	}
	return mech, nil
}

func newTLSConfig(cred *auth.Credential) (*tls.Config, error) {
	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if cred.SSLCALocation == "" {
		return tlsConfig, nil
	}

	pem, err := os.ReadFile(cred.SSLCALocation)
	if err != nil {
		return nil, hoperr.NewCredential(
			fmt.Sprintf("cannot read CA certificate at %s", cred.SSLCALocation), err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, hoperr.NewCredential(
			fmt.Sprintf("no CA certificates found in %s", cred.SSLCALocation),
			errors.New("stream: invalid CA bundle"))
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}
