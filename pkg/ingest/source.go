package ingest

import (
	"context"
	"io"

	"github.com/segmentio/kafka-go"
)

// Source yields one raw order message at a time. Next blocks until a
// message arrives, the source is exhausted (io.EOF), or ctx is done.
type Source interface {
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// KafkaSource consumes order messages from a Kafka topic. One consumer
// per instrument keeps delivery order total, which the engine relies on.
type KafkaSource struct {
	reader *kafka.Reader
}

func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	return &KafkaSource{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 1,
			MaxBytes: 10 << 20,
		}),
	}
}

func (s *KafkaSource) Next(ctx context.Context) ([]byte, error) {
	m, err := s.reader.ReadMessage(ctx)
	if err != nil {
		return nil, err
	}
	return m.Value, nil
}

func (s *KafkaSource) Close() error { return s.reader.Close() }

// ChanSource adapts an in-process channel to Source; used by tests and
// the replay tooling.
type ChanSource struct {
	ch chan []byte
}

func NewChanSource(buffer int) *ChanSource {
	return &ChanSource{ch: make(chan []byte, buffer)}
}

func (s *ChanSource) Send(msg []byte) { s.ch <- msg }

func (s *ChanSource) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-s.ch:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	}
}

func (s *ChanSource) Close() error {
	close(s.ch)
	return nil
}

var _ Source = (*KafkaSource)(nil)
var _ Source = (*ChanSource)(nil)
