package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/AryanGupta99/Acebuddy-Chatbot/internal/infrastructure/resilience"
)

const ingestQueueGroup = "workers"

// Queue carries ingest requests to a worker queue group and broadcasts
// cache invalidations to every subscriber.
type Queue struct {
	conn         *nats.Conn
	ingestSubj   string
	cacheSubj    string
	executor     *resilience.Executor
	logger       *slog.Logger
	drainTimeout time.Duration
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, ingestSubject, cacheSubject string) (*Queue, error) {
	return NewWithOptions(url, ingestSubject, cacheSubject, Options{})
}

func NewWithOptions(url, ingestSubject, cacheSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("acebuddy-chatbot"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:         conn,
		ingestSubj:   ingestSubject,
		cacheSubj:    cacheSubject,
		executor:     options.ResilienceExecutor,
		logger:       logger,
		drainTimeout: 5 * time.Second,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Connected reports whether the connection is currently usable.
func (q *Queue) Connected() bool {
	return q.conn != nil && q.conn.IsConnected()
}

func (q *Queue) PublishIngestRequested(ctx context.Context, sourceKey string) error {
	return q.publish(ctx, opPublishIngest, q.ingestSubj, sourceKey)
}

func (q *Queue) SubscribeIngestRequested(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.ingestSubj, ingestQueueGroup, handler)
}

// PublishCacheInvalidated broadcasts a pattern; the empty pattern clears all.
func (q *Queue) PublishCacheInvalidated(ctx context.Context, pattern string) error {
	return q.publish(ctx, opPublishCache, q.cacheSubj, pattern)
}

func (q *Queue) SubscribeCacheInvalidated(ctx context.Context, handler func(context.Context, string) error) error {
	return q.subscribe(ctx, q.cacheSubj, "", handler)
}

func (q *Queue) publish(ctx context.Context, operation, subject, payload string) error {
	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, []byte(payload)); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats."+operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(operation, err)
	}
	return nil
}

// subscribe blocks until ctx is done, then drains. An empty group means
// every subscriber sees every message.
func (q *Queue) subscribe(ctx context.Context, subject, group string, handler func(context.Context, string) error) error {
	cb := func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, string(msg.Data)); err != nil {
			q.logger.Error("nats_handler_failed", "subject", subject, "payload", string(msg.Data), "error", err)
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if group == "" {
		sub, err = q.conn.Subscribe(subject, cb)
	} else {
		sub, err = q.conn.QueueSubscribe(subject, group, cb)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(opSubscribe, fmt.Errorf("nats subscribe %s: %w", subject, err))
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(q.drainTimeout); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
