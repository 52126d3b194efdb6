// Package publish broadcasts completed process-chain Result graphs to
// external subscribers over a mangos PUB socket (spec.md §6's "Persisted
// state: None" still holds — this is an observability fan-out, never read
// back into the core transform, SPEC_FULL.md §6.3). Internally the
// orchestrator's completions are fanned out through pkg/pubsub first, the
// same way the teacher decouples producers from transport.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"go.nanomsg.org/mangos/v3"
	"go.nanomsg.org/mangos/v3/protocol/pub"
	_ "go.nanomsg.org/mangos/v3/transport/all"

	"github.com/cluso-security/chaingraph/pkg/logging"
	"github.com/cluso-security/chaingraph/pkg/model"
	"github.com/cluso-security/chaingraph/pkg/pubsub"
)

// Topic is the internal pkg/pubsub topic carrying completed Result graphs.
const Topic = "result.completed"

// Broadcaster owns a bound PUB socket and republishes everything it
// receives on the internal pubsub Topic.
type Broadcaster struct {
	sock   mangos.Socket
	sub    *pubsub.Subscription
	logger logging.Logger
	done   chan struct{}
}

// Start binds a PUB socket at addr (e.g. "tcp://*:9300") and begins
// forwarding messages published to Topic on ps. Call Stop to release the
// socket and unsubscribe.
func Start(addr string, ps *pubsub.PubSub, logger logging.Logger) (*Broadcaster, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	sock, err := pub.NewSocket()
	if err != nil {
		return nil, fmt.Errorf("publish: create PUB socket: %w", err)
	}
	if err := sock.Listen(addr); err != nil {
		sock.Close()
		return nil, fmt.Errorf("publish: listen on %s: %w", addr, err)
	}

	sub, err := ps.Subscribe(context.Background(), Topic)
	if err != nil || sub == nil {
		sock.Close()
		return nil, fmt.Errorf("publish: subscribe to %s", Topic)
	}

	b := &Broadcaster{sock: sock, sub: sub, logger: logger, done: make(chan struct{})}
	go b.run()
	logger.Info("【publish】broadcaster bound", logging.Field{Key: "addr", Value: addr})
	return b, nil
}

func (b *Broadcaster) run() {
	defer close(b.done)
	for msg := range b.sub.Channel() {
		result, ok := msg.(*model.Result)
		if !ok || result == nil {
			continue
		}
		data, err := json.Marshal(result)
		if err != nil {
			b.logger.Warn("【publish】failed to marshal result", logging.Field{Key: "error", Value: err.Error()})
			continue
		}
		if err := b.sock.Send(data); err != nil {
			b.logger.Warn("【publish】send failed", logging.Field{Key: "error", Value: err.Error()})
		}
	}
}

// Stop releases the PUB socket and waits for the forwarding goroutine to
// drain.
func (b *Broadcaster) Stop() error {
	b.sub.Unsubscribe()
	<-b.done
	return b.sock.Close()
}

// Publish emits result on ps's internal Topic, where it reaches every
// started Broadcaster.
func Publish(ps *pubsub.PubSub, result *model.Result) {
	if result == nil {
		return
	}
	ps.Publish(Topic, result)
}
