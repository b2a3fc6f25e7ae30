// Package nats carries change events over NATS. The connection is shared by
// every live subscription of the process.
package nats

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// ErrNotConnected is returned by Ping while the connection is down or reconnecting.
var ErrNotConnected = errors.New("nats: not connected")

// Config holds NATS connection configuration.
type Config struct {
	URL  string
	Name string

	// CAFile alone verifies the server; CertFile and KeyFile add a client certificate.
	CAFile   string
	CertFile string
	KeyFile  string
	Token    string
}

// Client owns the process-wide NATS connection and its JetStream context.
type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	logger *logger.Logger
}

// Connect dials the server and waits for the first round trip.
func Connect(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	c := &Client{logger: log}

	opts, err := c.options(cfg)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	if err := flush(ctx, nc); err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to reach NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	c.conn = nc
	c.js = js
	log.Info("NATS connected", zap.String("url", nc.ConnectedUrl()))
	return c, nil
}

func (c *Client) options(cfg Config) ([]nats.Option, error) {
	name := cfg.Name
	if name == "" {
		name = "travelbuddy"
	}
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.ReconnectBufSize(8 * 1024 * 1024),
		nats.DisconnectErrHandler(c.onDisconnect),
		nats.ReconnectHandler(c.onReconnect),
		nats.ErrorHandler(c.onAsyncError),
	}

	if cfg.CAFile != "" || cfg.CertFile != "" {
		tlsConfig, err := loadTLS(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
		opts = append(opts, nats.Secure(tlsConfig))
	}
	if cfg.Token != "" {
		opts = append(opts, nats.Token(cfg.Token))
	}
	return opts, nil
}

// Live rooms keep their subscriptions across a reconnect; events published
// while disconnected are not redelivered to them.
func (c *Client) onDisconnect(_ *nats.Conn, err error) {
	c.logger.Warn("NATS disconnected, live updates paused", zap.Error(err))
}

func (c *Client) onReconnect(nc *nats.Conn) {
	c.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
}

func (c *Client) onAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	fields := []zap.Field{zap.Error(err)}
	if sub != nil {
		fields = append(fields, zap.String("subject", sub.Subject))
		if errors.Is(err, nats.ErrSlowConsumer) {
			pending, _, _ := sub.Pending()
			fields = append(fields, zap.Int("pending", pending))
		}
	}
	c.logger.Error("NATS async error", fields...)
}

// JetStream returns the JetStream context.
func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

// Conn returns the underlying NATS connection.
func (c *Client) Conn() *nats.Conn {
	return c.conn
}

// Close drains subscriptions and closes the NATS connection.
func (c *Client) Close() {
	if c.conn == nil {
		return
	}
	if err := c.conn.Drain(); err != nil {
		c.logger.Warn("NATS drain failed", zap.Error(err))
		c.conn.Close()
	}
}

// Ping verifies the connection with a server round trip.
func (c *Client) Ping(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return flush(ctx, c.conn)
}

// IsConnected reports whether the connection is currently up.
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// flush round-trips to the server. FlushWithContext refuses contexts without a deadline.
func flush(ctx context.Context, nc *nats.Conn) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return nc.FlushWithContext(ctx)
}

func loadTLS(cfg Config) (*tls.Config, error) {
	tc := &tls.Config{MinVersion: tls.VersionTLS12}

	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse CA certificate %s", cfg.CAFile)
		}
		tc.RootCAs = pool
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("client certificate needs both NATS_CERT_FILE and NATS_KEY_FILE")
		}
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client cert: %w", err)
		}
		tc.Certificates = []tls.Certificate{cert}
	}
	return tc, nil
}
