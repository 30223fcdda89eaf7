package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/alchzh/hop-client/hoperr"
	"github.com/alchzh/hop-client/internal/pkg/logger"
	"github.com/alchzh/hop-client/message"
)

// ErrEndOfStream reports that the bounded poll timeout elapsed with no
// further data. It marks graceful termination, not a failure.
var ErrEndOfStream = errors.New("stream: end of stream")

// Metadata is the broker-side context that accompanies a consumed message.
type Metadata struct {
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Key       []byte
}

// Consumer is a stream opened for reading one or more topics.
// Instances are obtained from Stream.OpenConsumer.
type Consumer struct {
	reader      Reader
	groupID     string
	persist     bool
	pollTimeout time.Duration
	log         logger.Log

	closeOnce sync.Once
	closeErr  error
}

// GroupID returns the consumer group identity of this session.
func (c *Consumer) GroupID() string {
	return c.groupID
}

// Next blocks for the next message, decodes it and returns it with its
// broker metadata.
//
// When the poll timeout elapses with nothing delivered, Next returns
// ErrEndOfStream. A message that fails to decode returns its metadata
// alongside a codec error; the session stays open, and with persistence on
// the offending offset is still committed so the group skips past it.
func (c *Consumer) Next(ctx context.Context) (message.Message, *Metadata, error) {
	fetchCtx := ctx
	if c.pollTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, c.pollTimeout)
		defer cancel()
	}

	m, err := c.reader.FetchMessage(fetchCtx)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
			return nil, nil, ErrEndOfStream
		case errors.Is(err, io.EOF):
			// reader closed under us
			return nil, nil, ErrEndOfStream
		case ctx.Err() != nil:
			return nil, nil, ctx.Err()
		default:
			c.log.Error(err, "failed to fetch a message from the reader")
			return nil, nil, hoperr.NewTransport("cannot fetch message from broker", err)
		}
	}

	meta := &Metadata{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
		Key:       m.Key,
	}

	if c.persist {
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.log.Error(err, "failed to commit consumed position")
			return nil, meta, hoperr.NewTransport("cannot commit consumed position", err)
		}
	}

	msg, err := message.Decode(m.Value)
	if err != nil {
		c.log.WithFields(logger.Fields{
			"topic":  m.Topic,
			"offset": m.Offset,
		}).Warn("skipping message that failed to decode")
		return nil, meta, err
	}
	return msg, meta, nil
}

// MarkDone durably commits the position of a previously delivered message.
// It is only needed when the session was opened without persistence.
func (c *Consumer) MarkDone(ctx context.Context, meta *Metadata) error {
	if meta == nil {
		return hoperr.NewUsage("no message metadata to mark done", nil)
	}
	err := c.reader.CommitMessages(ctx, kafka.Message{
		Topic:     meta.Topic,
		Partition: meta.Partition,
		Offset:    meta.Offset,
	})
	if err != nil {
		return hoperr.NewTransport(
			fmt.Sprintf("cannot commit offset %d on %s", meta.Offset, meta.Topic), err)
	}
	return nil
}

// Close ends the subscription and releases the transport connection. Any
// position already committed stays committed. Safe to call more than once,
// and safe on every exit path including error unwinding.
func (c *Consumer) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.reader.Close()
		c.log.Debug("consumer closed")
	})
	return c.closeErr
}
