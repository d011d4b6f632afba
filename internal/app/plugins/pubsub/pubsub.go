package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/resonatehq/syncevents/internal/app/plugins/base"
	"github.com/resonatehq/syncevents/internal/metrics"
)

type Config struct {
	base.BaseConfig `mapstructure:",squash"`
	ProjectID       string `flag:"project-id" desc:"GCP project ID" default:""`
	Topic           string `flag:"topic" desc:"topic operation records are published to" default:""`
}

type PubSub struct {
	*base.Plugin
}

type Client interface {
	Publish(ctx context.Context, topic string, data []byte) (string, error)
	Close() error
}

type clientWrapper struct {
	*pubsub.Client
}

func (w *clientWrapper) Publish(ctx context.Context, topic string, data []byte) (string, error) {
	publisher := w.Client.Publisher(topic)
	result := publisher.Publish(ctx, &pubsub.Message{Data: data})
	return result.Get(ctx)
}

type processor struct {
	client  Client
	timeout time.Duration
}

type Addr struct {
	Topic string `json:"topic"`
}

func New(metrics *metrics.Metrics, config *Config) (*PubSub, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("GCP project ID is required")
	}

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, config.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}

	return NewWithClient(metrics, config, &clientWrapper{client})
}

func NewWithClient(metrics *metrics.Metrics, config *Config, client Client) (*PubSub, error) {
	proc := &processor{
		client:  client,
		timeout: config.Timeout,
	}

	plugin := base.NewPlugin("pubsub", &config.BaseConfig, metrics, proc, func() error {
		if client != nil {
			return client.Close()
		}
		return nil
	})

	return &PubSub{
		Plugin: plugin,
	}, nil
}

// Addr returns the address of the configured topic.
func (c *Config) Addr() ([]byte, error) {
	return json.Marshal(&Addr{Topic: c.Topic})
}

func (p *processor) Process(data []byte, body []byte) (bool, error) {
	var addr Addr
	if err := json.Unmarshal(data, &addr); err != nil {
		return false, err
	}

	if addr.Topic == "" {
		return false, fmt.Errorf("missing topic")
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	_, err := p.client.Publish(ctx, addr.Topic, body)
	if err != nil {
		return false, err
	}

	return true, nil
}
