// Package broker implements the message broker seeder: a fan-out of seed
// file contents to Service Bus queues and topics over the SAS-signed REST
// surface.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/seedctl/seedctl/pkg/seed"
)

// Prometheus metrics for broker seeding.
var (
	brokerMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "seedctl_broker_messages_total",
		Help: "Total broker messages published by outcome",
	}, []string{"outcome"}) // "published", "failed", "skipped"
)

// Definition names the target entity of one broker seed file. Exactly one
// of QueueName or TopicName should be set.
type Definition struct {
	QueueName string `json:"queueName,omitempty"`
	TopicName string `json:"topicName,omitempty"`
}

// Message is the broker seed file format.
type Message struct {
	Definition          Definition        `json:"definition"`
	MsgCustomProperties map[string]string `json:"msgCustomProperties,omitempty"`
	MsgData             string            `json:"msgData"`
}

// EntityName returns the queue or topic name, preferring the queue.
func (m *Message) EntityName() string {
	if m.Definition.QueueName != "" {
		return m.Definition.QueueName
	}
	return m.Definition.TopicName
}

// Config holds the broker seeder configuration.
type Config struct {
	// Namespace endpoint, e.g. "https://myns.servicebus.windows.net".
	Endpoint string

	// KeyName is the shared access key name.
	KeyName string

	// Key is the shared access key.
	Key string

	// TokenTTL is the SAS token validity window (default 10m).
	TokenTTL time.Duration

	// Timeout is the per-request HTTP timeout (default 30s).
	Timeout time.Duration
}

// Seeder publishes seed file contents to broker entities.
type Seeder struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a broker seeder.
func New(cfg Config) (*Seeder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("namespace endpoint is required")
	}
	if cfg.KeyName == "" || cfg.Key == "" {
		return nil, fmt.Errorf("shared access key name and key are required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 10 * time.Minute
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Seeder{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
		logger:     log.With().Str("component", "broker-seeder").Logger(),
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (s *Seeder) SetHTTPClient(client *http.Client) {
	s.httpClient = client
}

// Run publishes every broker seed file under dir. Malformed files are
// logged and skipped; publish failures fail the file but not the batch.
func (s *Seeder) Run(ctx context.Context, dir string) (published, failed int, err error) {
	files, err := seed.ReadDir(dir)
	if err != nil {
		return 0, 0, err
	}
	if len(files) == 0 {
		return 0, 0, fmt.Errorf("no seed files found in %s", dir)
	}

	for _, file := range files {
		var msg Message
		if err := json.Unmarshal(file.Data, &msg); err != nil {
			s.logger.Warn().Err(err).Str("path", file.Path).Msg("Skipping unparseable broker seed file")
			brokerMessagesTotal.WithLabelValues("skipped").Inc()
			failed++
			continue
		}
		if msg.EntityName() == "" {
			s.logger.Warn().Str("path", file.Path).Msg("Skipping broker seed file without queue or topic name")
			brokerMessagesTotal.WithLabelValues("skipped").Inc()
			failed++
			continue
		}

		if err := s.Publish(ctx, &msg); err != nil {
			s.logger.Error().Err(err).
				Str("path", file.Path).
				Str("entity", msg.EntityName()).
				Msg("Message publish failed")
			brokerMessagesTotal.WithLabelValues("failed").Inc()
			failed++
			continue
		}
		published++
	}

	s.logger.Info().
		Int("published", published).
		Int("failed", failed).
		Msg("Broker seed run complete")
	return published, failed, nil
}

// Publish sends one message to its queue or topic.
func (s *Seeder) Publish(ctx context.Context, msg *Message) error {
	entity := msg.EntityName()
	uri := s.config.Endpoint + "/" + entity + "/messages"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, strings.NewReader(msg.MsgData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	token := sasToken(s.config.Endpoint, s.config.KeyName, s.config.Key, time.Now().Add(s.config.TokenTTL))
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")

	props, err := json.Marshal(map[string]string{"Label": entity})
	if err != nil {
		return fmt.Errorf("marshal broker properties: %w", err)
	}
	req.Header.Set("BrokerProperties", string(props))

	for name, value := range msg.MsgCustomProperties {
		req.Header.Set(name, value)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", entity, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("publish to %s: unexpected status %d", entity, resp.StatusCode)
	}

	brokerMessagesTotal.WithLabelValues("published").Inc()
	s.logger.Info().
		Str("entity", entity).
		Int("properties", len(msg.MsgCustomProperties)).
		Msg("Message published")
	return nil
}
