package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/resonatehq/syncevents/internal/app/plugins/base"
	"github.com/resonatehq/syncevents/internal/metrics"
)

type Config struct {
	Size     int           `flag:"size" desc:"submission buffered channel size" default:"100" validate:"gt=0"`
	Workers  int           `flag:"workers" desc:"number of workers" default:"1" validate:"gt=0"`
	Timeout  time.Duration `flag:"timeout" desc:"aws request timeout" default:"30s"`
	Retries  int           `flag:"retries" desc:"number of times a failed message is resent" default:"0"`
	QueueURL string        `flag:"queue-url" desc:"url of the queue operation records are sent to"`
}

type SQSClient interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, opt ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQS struct {
	*base.Plugin
}

type processor struct {
	client  SQSClient
	timeout time.Duration
}

type Addr struct {
	QueueURL string `json:"queue_url"`
}

func New(metrics *metrics.Metrics, config *Config) (*SQS, error) {
	return NewWithClient(metrics, config, nil)
}

func NewWithClient(metrics *metrics.Metrics, config *Config, client SQSClient) (*SQS, error) {
	if client == nil {
		ctx := context.Background()
		awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		client = sqs.NewFromConfig(awsConfig)
	}

	proc := &processor{
		client:  client,
		timeout: config.Timeout,
	}

	baseConfig := &base.BaseConfig{
		Size:        config.Size,
		Workers:     config.Workers,
		Timeout:     config.Timeout,
		Retries:     config.Retries,
		TimeToRetry: time.Second,
	}

	return &SQS{
		Plugin: base.NewPlugin("sqs", baseConfig, metrics, proc, nil),
	}, nil
}

// Addr returns the address of the configured queue.
func (c *Config) Addr() ([]byte, error) {
	return json.Marshal(&Addr{QueueURL: c.QueueURL})
}

func (p *processor) Process(data []byte, body []byte) (bool, error) {
	var addr *Addr
	if err := json.Unmarshal(data, &addr); err != nil {
		return false, err
	}

	if addr == nil || addr.QueueURL == "" {
		return false, errors.New("missing queue_url in address")
	}

	region, err := parse(addr.QueueURL)
	if err != nil {
		return false, fmt.Errorf("failed to parse SQS URL: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	message_body := string(body)
	_, err = p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &addr.QueueURL,
		MessageBody: &message_body,
	}, func(o *sqs.Options) {
		o.Region = region
	})
	if err != nil {
		return false, fmt.Errorf("failed to send message: %w", err)
	}

	return true, nil
}

// Parse the SQS URL to extract region.
// Expected format: https://sqs.region.amazonaws.com/account/queue-name
func parse(queueURL string) (string, error) {
	url := strings.TrimSpace(queueURL)

	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	if !strings.HasPrefix(url, "sqs.") {
		return "", errors.New("invalid SQS URL format: must start with sqs")
	}

	url = strings.TrimPrefix(url, "sqs.")

	parts := strings.Split(url, ".")
	if len(parts) < 2 {
		return "", errors.New("invalid SQS URL format: missing region")
	}

	region := parts[0]
	if region == "" {
		return "", errors.New("invalid SQS URL format: empty region")
	}

	return region, nil
}
