// Package natsutil provides typed JSON publish, subscribe and request/reply
// helpers over NATS with OpenTelemetry trace propagation in message headers.
package natsutil

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts nats.Msg headers to propagation.TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Inject writes the trace context of ctx into msg headers.
func Inject(ctx context.Context, msg *nats.Msg) {
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
}

// Extract returns a context carrying the trace context found in msg headers.
func Extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
}

// DeadlineHeader carries the requester's deadline as RFC 3339 with nanoseconds.
const DeadlineHeader = "Wessley-Deadline"

// Codes set by Respond itself.
const (
	CodeBadRequest = "bad_request"
	CodeInternal   = "internal"
)

// DefaultWorkers is the number of requests Respond serves concurrently when
// RespondOpts.Workers is unset.
const DefaultWorkers = 8

// Reply is the envelope returned by Respond. Exactly one of Data and Error is set.
type Reply[T any] struct {
	Data  *T     `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// RemoteError is returned by Request when the responder replied with an error.
type RemoteError struct {
	Subject string
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("natsutil: %s: remote error [%s]: %s", e.Subject, e.Code, e.Message)
}

// Publish marshals v as JSON and publishes it on subject.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("natsutil: marshal %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	Inject(ctx, msg)
	return nc.PublishMsg(msg)
}

// Subscribe decodes JSON messages into T and calls handler with the
// propagated trace context. Malformed messages are logged and dropped.
func Subscribe[T any](nc *nats.Conn, subject string, log *slog.Logger, handler func(context.Context, T)) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Warn("dropping malformed message", "subject", msg.Subject, "err", err)
			return
		}
		handler(Extract(msg), v)
	})
}

// Request sends req as JSON and waits for a Reply[Resp] until ctx is done.
// ctx must carry a deadline or be cancellable.
func Request[Req, Resp any](ctx context.Context, nc *nats.Conn, subject string, req Req) (Resp, error) {
	var zero Resp
	data, err := json.Marshal(req)
	if err != nil {
		return zero, fmt.Errorf("natsutil: marshal %s: %w", subject, err)
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	Inject(ctx, msg)
	if dl, ok := ctx.Deadline(); ok {
		(*headerCarrier)(msg).Set(DeadlineHeader, dl.UTC().Format(time.RFC3339Nano))
	}

	resp, err := nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		return zero, fmt.Errorf("natsutil: request %s: %w", subject, err)
	}
	var reply Reply[Resp]
	if err := json.Unmarshal(resp.Data, &reply); err != nil {
		return zero, fmt.Errorf("natsutil: decode reply %s: %w", subject, err)
	}
	if reply.Error != "" || reply.Data == nil {
		return zero, &RemoteError{Subject: subject, Code: reply.Code, Message: reply.Error}
	}
	return *reply.Data, nil
}

// Handler serves one request.
type Handler[Req, Resp any] func(context.Context, Req) (Resp, error)

// RespondOpts configures Respond.
type RespondOpts struct {
	// Queue is the queue group; empty subscribes without one.
	Queue string
	Log   *slog.Logger
	// Classify maps a handler error to the Code sent back. Nil sends CodeInternal.
	Classify func(error) string
	// Workers bounds concurrently running handlers. Zero uses DefaultWorkers.
	Workers int
	// MaxDuration caps each handler's deadline. Zero leaves only the
	// requester's deadline, if any.
	MaxDuration time.Duration
}

// Respond serves request/reply on subject. Each request runs on its own
// goroutine, at most opts.Workers at a time, under a context that carries the
// propagated trace and the earlier of the requester's deadline and
// opts.MaxDuration. Malformed requests get CodeBadRequest.
func Respond[Req, Resp any](nc *nats.Conn, subject string, opts RespondOpts, h Handler[Req, Resp]) (*nats.Subscription, error) {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	classify := opts.Classify
	if classify == nil {
		classify = func(error) string { return CodeInternal }
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	sem := make(chan struct{}, workers)

	serve := func(msg *nats.Msg) {
		ctx, cancel := requestContext(msg, opts.MaxDuration)
		defer cancel()

		var reply Reply[Resp]
		var req Req
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			reply.Error, reply.Code = err.Error(), CodeBadRequest
		} else if resp, err := h(ctx, req); err != nil {
			reply.Error, reply.Code = err.Error(), classify(err)
		} else {
			reply.Data = &resp
		}
		data, err := json.Marshal(reply)
		if err != nil {
			log.Error("marshal reply", "subject", msg.Subject, "err", err)
			data, _ = json.Marshal(Reply[Resp]{Error: "encode reply: " + err.Error(), Code: CodeInternal})
		}
		if err := msg.Respond(data); err != nil {
			log.Error("send reply", "subject", msg.Subject, "err", err)
		}
	}

	cb := func(msg *nats.Msg) {
		if msg.Reply == "" {
			log.Warn("request without reply subject", "subject", msg.Subject)
			return
		}
		// Blocks the subscription when every worker is busy; pending
		// messages queue in the client until one frees up.
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			serve(msg)
		}()
	}
	if opts.Queue == "" {
		return nc.Subscribe(subject, cb)
	}
	return nc.QueueSubscribe(subject, opts.Queue, cb)
}

// requestContext derives the handler context for msg. An unparseable
// deadline header is ignored.
func requestContext(msg *nats.Msg, maxDur time.Duration) (context.Context, context.CancelFunc) {
	ctx := Extract(msg)
	var deadline time.Time
	if msg.Header != nil {
		if v := msg.Header.Get(DeadlineHeader); v != "" {
			if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
				deadline = t
			}
		}
	}
	if maxDur > 0 {
		if limit := time.Now().Add(maxDur); deadline.IsZero() || limit.Before(deadline) {
			deadline = limit
		}
	}
	if deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, deadline)
}
