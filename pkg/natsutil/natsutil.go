// Package natsutil provides typed NATS publish/subscribe helpers with
// OpenTelemetry trace propagation, so an upload traced at the HTTP edge
// stays traceable through the async ingestion worker.
package natsutil

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// headerCarrier adapts nats.Msg headers to the OTel TextMapCarrier.
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

// Inject writes the trace context from ctx into the message headers.
func Inject(ctx context.Context, msg *nats.Msg) {
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
}

// Extract returns a context carrying the trace context found in the
// message headers, if any.
func Extract(msg *nats.Msg) context.Context {
	return otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
}

// Publish serializes v as JSON and publishes it with trace context injected
// into the message headers.
func Publish[T any](ctx context.Context, nc *nats.Conn, subject string, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	Inject(ctx, msg)
	return nc.PublishMsg(msg)
}

// Subscribe registers a JSON-typed handler. Trace context is extracted from
// the message headers; malformed payloads are logged and dropped.
func Subscribe[T any](nc *nats.Conn, subject string, log *slog.Logger, handler func(context.Context, T)) (*nats.Subscription, error) {
	if log == nil {
		log = slog.Default()
	}
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var v T
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			log.Warn("dropping malformed message", "subject", subject, "err", err)
			return
		}
		handler(Extract(msg), v)
	})
}
