// Package kafka implements logclient.LogClient against a single-partition
// Kafka topic using franz-go, with seed brokers and optional TLS as its
// broker-connection options.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/schemacore/registry/internal/logclient"
)

// Config holds the broker connection settings for the registry's topic.
type Config struct {
	Brokers       []string
	Topic         string
	TLSEnabled    bool
	TLSSkipVerify bool
}

// Client implements logclient.LogClient on top of a single-partition topic.
// It binds every produce/consume operation to partition 0, enforcing the
// single-partition ordering the registry's log requires (spec §4.1).
type Client struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

const partition = 0

// New creates a Kafka-backed LogClient. It does not create the topic;
// operators are expected to provision it with a single partition and
// infinite retention ahead of time, per spec §6.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{
			cfg.Topic: {partition: kgo.NewOffset().AtStart()},
		}),
		kgo.DisableAutoCommit(),
		kgo.RecordPartitioner(kgo.ManualPartitioner()),
	}

	if cfg.TLSEnabled {
		opts = append(opts, kgo.DialTLSConfig(&tls.Config{
			InsecureSkipVerify: cfg.TLSSkipVerify, // #nosec G402 -- operator-controlled flag
		}))
	}

	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: new client: %w", err)
	}

	return &Client{client: cl, topic: cfg.Topic, logger: logger}, nil
}

func (c *Client) Produce(ctx context.Context, key, value []byte) (int64, error) {
	rec := &kgo.Record{
		Topic:     c.topic,
		Partition: partition,
		Key:       key,
		Value:     value,
	}

	results := c.client.ProduceSync(ctx, rec)
	if err := results.FirstErr(); err != nil {
		return 0, fmt.Errorf("kafka: produce: %w", err)
	}
	return rec.Offset, nil
}

func (c *Client) Subscribe(ctx context.Context, fromOffset int64) (<-chan logclient.Record, <-chan error) {
	recs := make(chan logclient.Record, 256)
	errs := make(chan error, 1)

	c.client.AddConsumePartitions(map[string]map[int32]kgo.Offset{
		c.topic: {partition: kgo.NewOffset().At(fromOffset)},
	})

	go func() {
		defer close(recs)
		defer close(errs)

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			fetches := c.client.PollFetches(ctx)
			if ctx.Err() != nil {
				return
			}

			if errList := fetches.Errors(); len(errList) > 0 {
				for _, fe := range errList {
					if fe.Err == nil {
						continue
					}
					c.logger.Error("kafka fetch error, retrying", slog.String("error", fe.Err.Error()))
				}
			}

			fetches.EachPartition(func(p kgo.FetchTopicPartition) {
				for _, r := range p.Records {
					select {
					case recs <- logclient.Record{Offset: r.Offset, Key: r.Key, Value: r.Value}:
					case <-ctx.Done():
						return
					}
				}
			})
		}
	}()

	return recs, errs
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}
