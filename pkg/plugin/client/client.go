// Package client provides a client library for communicating with the plugin
// server running inside the CAD host.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cadbridge/cadbridge/pkg/faults"
	"github.com/cadbridge/cadbridge/pkg/plugin/protocol"
	"github.com/cadbridge/cadbridge/pkg/telemetry"
)

const (
	// MsgUnableToConnect is the response error when no connection could be made.
	MsgUnableToConnect = "Unable to connect to plugin"

	// probeTimeout bounds the stale-peer check before each request.
	probeTimeout = time.Millisecond
)

// Config contains client configuration options.
type Config struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"gte=1,lte=65535"`

	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration `yaml:"dial_timeout" validate:"gte=0"`

	// Timeout bounds one request/response round trip.
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`

	// ReconnectDelay suppresses dialing for this long after a failed dial.
	// Zero disables the suppression.
	ReconnectDelay time.Duration `yaml:"reconnect_delay" validate:"gte=0"`
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8765,
		DialTimeout:    5 * time.Second,
		Timeout:        30 * time.Second,
		ReconnectDelay: 5 * time.Second,
	}
}

// Address returns host:port.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client manages a single connection to the plugin. Round trips are
// serialized: one outstanding request per connection.
type Client struct {
	config  Config
	logger  zerolog.Logger
	errors  *faults.Handler
	metrics *telemetry.Metrics
	now     func() time.Time

	mu          sync.Mutex
	conn        net.Conn
	encoder     *protocol.Encoder
	decoder     *protocol.Decoder
	lastFailure time.Time
	lastDialErr error
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger.With().Str("component", "plugin_client").Logger()
	}
}

// WithErrorHandler routes connection and communication failures through h.
func WithErrorHandler(h *faults.Handler) Option {
	return func(c *Client) {
		if h != nil {
			c.errors = h
		}
	}
}

// WithMetrics records round trips and dials.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a disconnected client.
func New(cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.Host == "" {
		cfg.Host = defaults.Host
	}
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaults.DialTimeout
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	c := &Client{
		config: cfg,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.errors == nil {
		c.errors = faults.NewHandler(faults.WithLogger(c.logger))
	}
	return c
}

// Connect dials the plugin if not already connected.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connect(ctx, false)
}

// Disconnect closes the connection, if any.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.close()
}

// Connected reports whether the client holds an open connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Send performs one round trip. It never returns an error: connection and
// communication failures are reported as error responses.
func (c *Client) Send(ctx context.Context, name string, params map[string]any) protocol.Response {
	resp, err := c.send(ctx, name, params, false)
	if err != nil {
		c.errors.Handle(err, c.errContext(name))
	}
	return resp
}

// SendWithRetry is Send with transport failures retried under the plugin
// communication policy. Error responses from the plugin are not retried.
// Every attempt dials, ignoring ReconnectDelay.
func (c *Client) SendWithRetry(ctx context.Context, name string, params map[string]any) protocol.Response {
	resp, _ := faults.Do(ctx, c.errors, func(ctx context.Context) (protocol.Response, error) {
		return c.send(ctx, name, params, true)
	}, c.errContext(name))
	return resp
}

// TestConnection reports whether the plugin answers. A reply saying there is
// no active product still proves the channel works.
func (c *Client) TestConnection(ctx context.Context) bool {
	resp := c.Send(ctx, protocol.CommandGetDesignInfo, nil)
	if !resp.Failed() {
		return true
	}
	return strings.Contains(strings.ToLower(resp.Error), "no active product")
}

func (c *Client) errContext(command string) map[string]any {
	return map[string]any{
		"operation": "send_command",
		"command":   command,
		"host":      c.config.Host,
		"port":      c.config.Port,
	}
}

// send returns the response and, for transport failures, the classified error
// that produced the error response. With force set a remembered dial failure
// does not suppress the dial.
func (c *Client) send(ctx context.Context, name string, params map[string]any, force bool) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := telemetry.NewTimer()

	if c.conn != nil && c.stale() {
		c.logger.Debug().Msg("plugin closed the connection, reconnecting")
		c.close()
	}
	if c.conn == nil {
		if err := c.connect(ctx, force); err != nil {
			c.metrics.RecordClientRequest(name, true, timer.Duration())
			return protocol.Failure(MsgUnableToConnect), err
		}
	}

	resp, err := c.roundTrip(ctx, protocol.NewCommand(name, params))
	if err != nil {
		c.close()
		c.metrics.RecordClientRequest(name, true, timer.Duration())
		return protocol.Failure("Communication error: %v", err),
			faults.Wrap(err, faults.CategoryPluginComm, faults.SeverityHigh, "Communication error")
	}

	c.metrics.RecordClientRequest(name, resp.Failed(), timer.Duration())
	return resp, nil
}

// connect dials the plugin. Within ReconnectDelay of a failed dial it
// reports that failure again without dialing, unless force is set.
// Callers hold c.mu.
func (c *Client) connect(ctx context.Context, force bool) error {
	if c.conn != nil {
		return nil
	}
	if !force && c.config.ReconnectDelay > 0 && c.lastDialErr != nil &&
		c.now().Sub(c.lastFailure) < c.config.ReconnectDelay {
		return c.dialError(c.lastDialErr)
	}

	dialer := net.Dialer{Timeout: c.config.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address())
	if err != nil {
		c.lastFailure = c.now()
		c.lastDialErr = err
		c.logger.Warn().Err(err).Str("addr", c.config.Address()).Msg("failed to connect to plugin")
		return c.dialError(err)
	}

	c.conn = conn
	c.encoder = protocol.NewEncoder(conn)
	c.decoder = protocol.NewDecoder(conn)
	c.lastDialErr = nil
	c.metrics.RecordClientConnect()
	c.logger.Info().Str("addr", c.config.Address()).Msg("connected to plugin")
	return nil
}

// dialError classifies a dial failure. Each call returns a new error so
// handled records never share state.
func (c *Client) dialError(err error) error {
	return faults.Wrap(err, faults.CategoryPluginComm, faults.SeverityHigh, MsgUnableToConnect).
		WithDetail("address", c.config.Address())
}

// close drops the connection. Callers hold c.mu.
func (c *Client) close() {
	if c.conn == nil {
		return
	}
	c.conn.Close()
	c.conn = nil
	c.encoder = nil
	c.decoder = nil
}

// stale reports whether the peer has gone away. Between round trips nothing
// should be readable, so any data or a read error other than a timeout means
// the connection is unusable.
func (c *Client) stale() bool {
	if err := c.conn.SetReadDeadline(c.now().Add(probeTimeout)); err != nil {
		return true
	}
	var b [1]byte
	_, err := c.conn.Read(b[:])
	if err == nil {
		return true
	}
	return !errors.Is(err, os.ErrDeadlineExceeded)
}

// roundTrip writes cmd and reads exactly one response. Callers hold c.mu.
func (c *Client) roundTrip(ctx context.Context, cmd *protocol.Command) (protocol.Response, error) {
	deadline := c.now().Add(c.config.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return protocol.Response{}, err
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Now())
	})
	defer stop()

	if err := c.encoder.EncodeCommand(cmd); err != nil {
		return protocol.Response{}, c.ctxErr(ctx, err)
	}
	resp, err := c.decoder.DecodeResponse()
	if errors.Is(err, io.EOF) {
		return protocol.Response{}, fmt.Errorf("connection closed by plugin")
	}
	if err != nil {
		return protocol.Response{}, c.ctxErr(ctx, err)
	}
	return resp, nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}
