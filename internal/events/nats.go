package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/resilience"
)

type NATSOptions struct {
	SubjectPrefix  string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
	Breaker        *resilience.Breaker
	Logger         zerolog.Logger
}

// NATSPublisher sends report events to <prefix>.<type> subjects.
type NATSPublisher struct {
	conn    *nats.Conn
	prefix  string
	breaker *resilience.Breaker
	logger  zerolog.Logger
}

// NewNATSPublisher fails when the server is unreachable at startup. Later
// disconnects are retried in the background.
func NewNATSPublisher(url string, opts NATSOptions) (*NATSPublisher, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 2 * time.Second
	}
	if opts.ReconnectWait <= 0 {
		opts.ReconnectWait = 2 * time.Second
	}
	if opts.MaxReconnects <= 0 {
		opts.MaxReconnects = 60
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "citifix"
	}
	logger := opts.Logger.With().Str("component", "nats").Logger()

	conn, err := nats.Connect(
		url,
		nats.Name("citifix-backend"),
		nats.Timeout(opts.ConnectTimeout),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &NATSPublisher{
		conn:    conn,
		prefix:  strings.TrimSuffix(opts.SubjectPrefix, "."),
		breaker: opts.Breaker,
		logger:  logger,
	}, nil
}

func (p *NATSPublisher) Subject(t Type) string {
	return p.prefix + "." + string(t)
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.breaker.Execute(ctx, "nats.publish", func(context.Context) error {
		if err := p.conn.Publish(p.Subject(ev.Type), payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	})
}

// Subscribe delivers events of type t until ctx is done.
func (p *NATSPublisher) Subscribe(ctx context.Context, t Type, handler func(context.Context, Event) error) error {
	sub, err := p.conn.Subscribe(p.Subject(t), func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		var ev Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			p.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("dropping malformed event")
			return
		}
		if err := handler(ctx, ev); err != nil {
			p.logger.Error().Err(err).Str("report_id", ev.ReportID).Msg("event handler failed")
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	// The client replays the subscription after a reconnect.
	if err := p.conn.Flush(); err != nil {
		p.logger.Warn().Err(err).Str("subject", sub.Subject).Msg("subscription not yet confirmed by server")
	}
	go func() {
		<-ctx.Done()
		_ = sub.Unsubscribe()
	}()
	return nil
}

func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}
