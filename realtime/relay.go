package realtime

import (
	"context"
	"encoding/json"
	"errors"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/quizgate"
)

const DefaultChannel = "quizgate:events"

// Relay feeds Envelopes published on a Redis channel into the hub, so any
// service with Redis access can emit without an HTTP round trip.
type Relay struct {
	rdb     goredis.UniversalClient
	channel string
	hub     *Hub
	log     quizgate.Logger
}

func NewRelay(rdb goredis.UniversalClient, channel string, hub *Hub, log quizgate.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = quizgate.NopLogger{}
	}
	return &Relay{rdb: rdb, channel: channel, hub: hub, log: log}
}

func (r *Relay) Channel() string { return r.channel }

// Run subscribes and relays until ctx is done. go-redis resubscribes on its
// own after a dropped connection.
func (r *Relay) Run(ctx context.Context) error {
	ps := r.rdb.Subscribe(ctx, r.channel)
	defer ps.Close()

	if _, err := ps.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	r.log.Info("realtime relay subscribed", quizgate.Fields{"channel": r.channel})

	msgs := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var e Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
				r.log.Warn("realtime relay payload ignored", quizgate.Fields{"channel": r.channel, "err": err})
				continue
			}
			if _, err := r.hub.Emit(e); err != nil {
				r.log.Warn("realtime relay event rejected", quizgate.Fields{"channel": r.channel, "err": err})
			}
		}
	}
}

// Publish sends e to every relay listening on the channel.
func (r *Relay) Publish(ctx context.Context, e Envelope) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}
