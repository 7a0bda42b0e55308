package notify

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/okian/dripcue/internal/domain/dedupe"
)

// Backend names accepted by Build.
const (
	BackendLog     = "log"
	BackendWebhook = "webhook"
	BackendMQTT    = "mqtt"
)

// Config selects and configures notification backends.
type Config struct {
	Backends       []string
	WebhookURL     string
	WebhookTimeout time.Duration
	MQTTBroker     string
	MQTTTopic      string
	MQTTClientID   string
	QueueCapacity  int
	DedupeSize     int
}

// Build assembles the delivery chain: tag coalescing in front of an async
// queue that fans out to every configured backend. With no backends the log
// backend is used. The caller must Start and Shutdown the result.
func Build(cfg Config) (*Async, Dispatcher, error) {
	names := cfg.Backends
	if len(names) == 0 {
		names = []string{BackendLog}
	}

	var (
		fan     Multi
		closers []io.Closer
	)
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case BackendLog:
			fan = append(fan, NewLog(nil))
		case BackendWebhook:
			if cfg.WebhookURL == "" {
				return nil, nil, fmt.Errorf("%w: webhook needs a url", ErrUnknownBackend)
			}
			fan = append(fan, NewWebhook(cfg.WebhookURL, WithWebhookTimeout(cfg.WebhookTimeout)))
		case BackendMQTT:
			if cfg.MQTTBroker == "" || cfg.MQTTTopic == "" {
				return nil, nil, fmt.Errorf("%w: mqtt needs a broker and topic", ErrUnknownBackend)
			}
			pub := NewPahoPublisher(cfg.MQTTBroker, cfg.MQTTClientID)
			closers = append(closers, pub)
			fan = append(fan, NewMQTT(pub, cfg.MQTTTopic))
		case "":
		default:
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
		}
	}

	var next Dispatcher = fan
	if len(fan) == 1 {
		next = fan[0]
	}
	async := NewAsync(next, cfg.QueueCapacity)
	async.closers = closers
	var seen dedupe.Deduper
	if cfg.DedupeSize > 0 {
		seen = dedupe.NewTagSet(dedupe.WithMaxSize(cfg.DedupeSize))
	} else {
		seen = dedupe.NewTagSet()
	}
	return async, NewCoalescing(async, seen), nil
}
