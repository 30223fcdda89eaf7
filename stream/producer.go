package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
	"github.com/alchzh/hop-client/message"
)

// Header is an optional key/value pair attached to a produced message.
type Header struct {
	Key   string
	Value []byte
}

// Producer is a stream opened for writing to a single topic.
// Instances are obtained from Stream.OpenProducer.
type Producer struct {
	writer Writer
	topic  string
	log    logger.Log

	closeOnce sync.Once
	closeErr  error
}

// Topic returns the topic this producer appends to.
func (p *Producer) Topic() string {
	return p.topic
}

// Write encodes the message through its format codec and appends it to the
// topic, returning once the broker has acknowledged receipt. An encoding
// failure aborts the call before anything reaches the transport.
func (p *Producer) Write(ctx context.Context, msg message.Message, headers ...Header) error {
	payload, err := msg.Serialize()
	if err != nil {
		return err
	}

	kmsg := kafka.Message{
		Value: payload,
		Time:  time.Now(),
	}
	for _, h := range headers {
		kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
	}

	if err := p.writer.WriteMessages(ctx, kmsg); err != nil {
		p.log.Error(err, "failed to write message")
		return hoperr.NewTransport(fmt.Sprintf("cannot publish to topic %q", p.topic), err)
	}
	return nil
}

// Close flushes pending writes and releases the transport connection.
// It is safe to call more than once.
func (p *Producer) Close() error {
	p.closeOnce.Do(func() {
		p.closeErr = p.writer.Close()
		p.log.Debug("producer closed")
	})
	return p.closeErr
}
