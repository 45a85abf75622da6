// Package natsgw exposes the dispatcher over NATS request/reply for
// service-to-service callers.
package natsgw

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/musicgen-service/internal/dispatch"
	"github.com/nats-io/nats.go"
)

// DefaultHandleTimeout bounds asynchronous-variant message handling.
// Submission and polling are near-instant; the bound only catches a wedged
// store or callback.
const DefaultHandleTimeout = 30 * time.Second

// Gateway subscribes on a generate subject and answers each message with one
// JSON response envelope.
type Gateway struct {
	natsConnection *nats.Conn
	subject        string
	dispatcher     *dispatch.Dispatcher
	log            *logger.Logger
	syncMode       bool
	handleTimeout  time.Duration
}

// New creates a gateway. In sync mode every submission runs inline and the
// handle timeout must cover a full generation; callers configure it
// accordingly.
func New(
	natsConnection *nats.Conn,
	subject string,
	dispatcher *dispatch.Dispatcher,
	log *logger.Logger,
	syncMode bool,
	handleTimeout time.Duration,
) *Gateway {
	if handleTimeout <= 0 {
		handleTimeout = DefaultHandleTimeout
	}

	return &Gateway{
		natsConnection: natsConnection,
		subject:        subject,
		dispatcher:     dispatcher,
		log:            log,
		syncMode:       syncMode,
		handleTimeout:  handleTimeout,
	}
}

// Run subscribes and serves until the context is canceled, then drains.
func (g *Gateway) Run(ctx context.Context) error {
	sub, err := g.natsConnection.Subscribe(g.subject, g.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", g.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (g *Gateway) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), g.handleTimeout)
	defer cancel()

	var env dispatch.Envelope

	err := json.Unmarshal(msg.Data, &env)
	if err != nil {
		g.respond(msg, dispatch.Response{Error: fmt.Sprintf("failed to unmarshal request: %v", err)})

		return
	}

	req := dispatch.Parse(env)

	var resp dispatch.Response
	if g.syncMode && req.Kind == dispatch.KindSubmit {
		resp = g.dispatcher.HandleSync(ctx, req)
	} else {
		resp = g.dispatcher.Handle(ctx, req)
	}

	g.respond(msg, resp)
}

func (g *Gateway) respond(msg *nats.Msg, resp dispatch.Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		g.log.Error("Failed to marshal response: %v", err)

		return
	}

	err = msg.Respond(data)
	if err != nil {
		g.log.Error("Failed to publish reply: %v", err)
	}
}
