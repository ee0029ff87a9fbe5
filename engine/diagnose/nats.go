package diagnose

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-diagnose/engine/domain"
	"github.com/WessleyAI/wessley-diagnose/pkg/natsutil"
	"github.com/nats-io/nats.go"
)

// Subject is the NATS request/reply subject for diagnosis.
const Subject = "diagnose.request"

// Reply codes sent back over NATS.
const (
	CodeInvalidQuery = "invalid_query"
	CodeCancelled    = "cancelled"
	CodeInternal     = natsutil.CodeInternal
)

// DefaultRequestTimeout bounds a NATS request when the caller sets no
// deadline, and caps how long Serve lets one diagnosis run.
const DefaultRequestTimeout = 60 * time.Second

// ServeOpts configures Serve.
type ServeOpts struct {
	// Subject defaults to Subject.
	Subject string
	// Queue is the queue group shared by engine replicas.
	Queue string
	// Workers bounds concurrent diagnoses; zero uses natsutil.DefaultWorkers.
	Workers int
	// MaxDuration caps each diagnosis; zero uses DefaultRequestTimeout.
	MaxDuration time.Duration
	Log         *slog.Logger
}

// Serve answers diagnosis requests. Each request runs under the requester's
// deadline, capped by opts.MaxDuration.
func Serve(nc *nats.Conn, e *Engine, opts ServeOpts) (*nats.Subscription, error) {
	subject := opts.Subject
	if subject == "" {
		subject = Subject
	}
	maxDur := opts.MaxDuration
	if maxDur <= 0 {
		maxDur = DefaultRequestTimeout
	}
	sub, err := natsutil.Respond(nc, subject, natsutil.RespondOpts{
		Queue:       opts.Queue,
		Log:         opts.Log,
		Classify:    ReplyCode,
		Workers:     opts.Workers,
		MaxDuration: maxDur,
	},
		func(ctx context.Context, q domain.DiagnosticQuery) (Result, error) {
			res, err := e.Run(ctx, q)
			if err != nil {
				return Result{}, err
			}
			return *res, nil
		})
	if err != nil {
		return nil, fmt.Errorf("diagnose: subscribe %s: %w", subject, err)
	}
	return sub, nil
}

// ReplyCode maps an engine error to its wire code.
func ReplyCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return CodeInvalidQuery
	case errors.Is(err, domain.ErrCancelled):
		return CodeCancelled
	default:
		return CodeInternal
	}
}

// Client sends diagnosis requests to a remote engine.
type Client struct {
	nc      *nats.Conn
	subject string
}

// NewClient creates a Client. An empty subject uses Subject.
func NewClient(nc *nats.Conn, subject string) *Client {
	if subject == "" {
		subject = Subject
	}
	return &Client{nc: nc, subject: subject}
}

// Run sends q and waits for the result. Remote invalid-query and cancelled
// replies come back as domain.ErrInvalidQuery and domain.ErrCancelled.
func (c *Client) Run(ctx context.Context, q domain.DiagnosticQuery) (*Result, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultRequestTimeout)
		defer cancel()
	}
	res, err := natsutil.Request[domain.DiagnosticQuery, Result](ctx, c.nc, c.subject, q)
	if err != nil {
		var re *natsutil.RemoteError
		if errors.As(err, &re) {
			switch re.Code {
			case CodeInvalidQuery:
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidQuery, re.Message)
			case CodeCancelled:
				return nil, fmt.Errorf("%w: %s", domain.ErrCancelled, re.Message)
			}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrCancelled, err)
		}
		return nil, fmt.Errorf("diagnose: request: %w", err)
	}
	return &res, nil
}
