package host

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ErrorHeader carries a failure reported by the host in a reply.
const ErrorHeader = "Stagehand-Error"

// Requester is the subset of *nats.Conn used by NATSControlPlane.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// NATSConfig configures a NATSControlPlane.
type NATSConfig struct {
	// SubjectPrefix is prepended to every request subject
	SubjectPrefix string `mapstructure:"subject_prefix"`

	// RequestTimeout bounds a single attempt when the caller's context has no deadline
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// MaxAttempts is the number of attempts for transient failures
	MaxAttempts uint `mapstructure:"max_attempts"`

	// RetryDelay is the base delay between attempts
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// DefaultNATSConfig returns a configuration with sensible defaults
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		SubjectPrefix:  "stagehand.host",
		RequestTimeout: 5 * time.Second,
		MaxAttempts:    3,
		RetryDelay:     200 * time.Millisecond,
	}
}

// RequestError is a failure the host reported for a request.
type RequestError struct {
	Subject string
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("host rejected request on %s: %s", e.Subject, e.Message)
}

// Breaker guards the control plane transport. *concurrency.CircuitBreaker satisfies it.
type Breaker interface {
	IsOpen() bool
	RecordSuccess()
	RecordFailure()
}

// NATSControlPlane sends control plane requests as NATS request-reply messages on
// subject <prefix>.<method>.<path segments>.
type NATSControlPlane struct {
	conn    Requester
	config  NATSConfig
	logger  *zap.Logger
	breaker Breaker
}

// NewNATSControlPlane creates a control plane over an established connection.
func NewNATSControlPlane(conn Requester, config NATSConfig, logger *zap.Logger) (*NATSControlPlane, error) {
	if conn == nil {
		return nil, errors.New("connection cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultNATSConfig()
	if config.SubjectPrefix == "" {
		config.SubjectPrefix = defaults.SubjectPrefix
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaults.RequestTimeout
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	return &NATSControlPlane{conn: conn, config: config, logger: logger}, nil
}

// WithBreaker makes requests fail fast with ErrControlPlaneUnavailable while b is
// open. Only transport failures count against b; host rejections do not.
func (c *NATSControlPlane) WithBreaker(b Breaker) *NATSControlPlane {
	c.breaker = b
	return c
}

// Subject returns the subject a request for method and path is sent on.
func (c *NATSControlPlane) Subject(method, path string) (string, error) {
	return requestSubject(c.config.SubjectPrefix, method, path)
}

// Request sends payload and waits for the reply. Timeouts and missing responders are
// retried; a reply carrying ErrorHeader is returned as *RequestError without retry.
func (c *NATSControlPlane) Request(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	subject, err := c.Subject(method, path)
	if err != nil {
		return nil, err
	}
	if c.breaker != nil && c.breaker.IsOpen() {
		return nil, fmt.Errorf("%w: circuit open for %s", ErrControlPlaneUnavailable, subject)
	}

	var reply []byte
	attempt := 0
	err = retry.Do(
		func() error {
			attempt++
			attemptCtx := ctx
			if _, ok := ctx.Deadline(); !ok {
				var cancel context.CancelFunc
				attemptCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
				defer cancel()
			}

			msg, err := c.conn.RequestWithContext(attemptCtx, subject, payload)
			if err != nil {
				c.logger.Debug("Control plane request failed",
					zap.String("subject", subject),
					zap.Int("attempt", attempt),
					zap.Error(err))
				return err
			}
			if msg.Header != nil {
				if reason := msg.Header.Get(ErrorHeader); reason != "" {
					return retry.Unrecoverable(&RequestError{Subject: subject, Message: reason})
				}
			}
			reply = msg.Data
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(c.config.MaxAttempts),
		retry.Delay(c.config.RetryDelay),
		retry.RetryIf(isTransient),
		retry.LastErrorOnly(true),
	)
	c.record(ctx, err)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) {
			return nil, fmt.Errorf("%w: %v", ErrControlPlaneUnavailable, err)
		}
		return nil, err
	}
	return reply, nil
}

func (c *NATSControlPlane) record(ctx context.Context, err error) {
	if c.breaker == nil {
		return
	}
	var reqErr *RequestError
	switch {
	case err == nil, errors.As(err, &reqErr):
		c.breaker.RecordSuccess()
	case ctx.Err() != nil:
		// the caller gave up; says nothing about the host
	default:
		c.breaker.RecordFailure()
	}
}

func isTransient(err error) bool {
	return errors.Is(err, nats.ErrTimeout) ||
		errors.Is(err, nats.ErrNoResponders) ||
		errors.Is(err, context.DeadlineExceeded)
}

func requestSubject(prefix, method, path string) (string, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return "", errors.New("request method cannot be empty")
	}

	tokens := []string{prefix, method}
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		tokens = append(tokens, seg)
	}
	for _, tok := range tokens[1:] {
		if strings.ContainsAny(tok, " \t\r\n.*>") {
			return "", fmt.Errorf("invalid subject token %q", tok)
		}
	}
	return strings.Join(tokens, "."), nil
}
