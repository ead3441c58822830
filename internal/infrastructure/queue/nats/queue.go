package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/resilience"
)

// BatchTransport carries encoded calculation batches over NATS request/reply.
type BatchTransport struct {
	conn           *nats.Conn
	subject        string
	queueGroup     string
	requestTimeout time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
}

func New(url, subject string) (*BatchTransport, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	RequestTimeout       time.Duration
	QueueGroup           string
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*BatchTransport, error) {
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
	requestTimeout := options.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	queueGroup := options.QueueGroup
	if queueGroup == "" {
		queueGroup = "duty-workers"
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("customs-duty-engine"),
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
	return &BatchTransport{
		conn:           conn,
		subject:        subject,
		queueGroup:     queueGroup,
		requestTimeout: requestTimeout,
		executor:       options.ResilienceExecutor,
		logger:         logger,
	}, nil
}

func (q *BatchTransport) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// RequestBatch sends an encoded batch and waits for the worker's encoded reply.
func (q *BatchTransport) RequestBatch(ctx context.Context, payload []byte) ([]byte, error) {
	if limit := q.conn.MaxPayload(); limit > 0 && int64(len(payload)) > limit {
		return nil, batchRequestError(fmt.Errorf("batch of %d bytes exceeds server limit %d: %w", len(payload), limit, nats.ErrMaxPayload))
	}
	call := func(ctx context.Context) ([]byte, error) {
		reqCtx := ctx
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, q.requestTimeout)
			defer cancel()
		}
		msg, err := q.conn.RequestWithContext(reqCtx, q.subject, payload)
		if err != nil {
			return nil, fmt.Errorf("nats request: %w", err)
		}
		return msg.Data, nil
	}

	var (
		reply []byte
		err   error
	)
	if q.executor != nil {
		reply, err = resilience.Call(ctx, q.executor, requestBatchOp, call, classifyBatchRequestError)
	} else {
		reply, err = call(ctx)
	}
	if err != nil {
		return nil, batchRequestError(err)
	}
	return reply, nil
}

// SubscribeBatchRequests answers batch requests in a queue group until ctx is cancelled.
func (q *BatchTransport) SubscribeBatchRequests(ctx context.Context, handler func(context.Context, []byte) ([]byte, error)) error {
	sub, err := q.conn.QueueSubscribe(q.subject, q.queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		reply, err := handler(handlerCtx, msg.Data)
		if err != nil {
			q.logger.Error("batch_handler_failed", "subject", msg.Subject, "bytes", len(msg.Data), "error", err)
			return
		}
		if msg.Reply == "" {
			return
		}
		if err := msg.Respond(reply); err != nil {
			q.logger.Error("batch_reply_failed", "subject", msg.Subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
