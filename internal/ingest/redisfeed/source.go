// Package redisfeed adapts a Redis Pub/Sub channel carrying pre-decoded
// JSON execution reports into the internal/ingest.EventSource interface.
// Grounded on the teacher's internal/fabric/redis_event_bus.go (Pub/Sub
// fan-out shape) and internal/infra/redis_adapter.go (direct go-redis v9
// client usage, subscription confirmation via sub.Receive, message loop
// over sub.Channel()).
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/clock"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

// Config configures one Source: which Redis server, which channel, and
// which Source tag (Primary/DropCopy) to stamp onto decoded events.
type Config struct {
	Addr    string
	Channel string
	Stream  execevent.Source
}

// wireEvent is the JSON shape published onto the channel. Field names are
// snake_case to match the publishing side's existing JSON convention
// elsewhere in the ocx backend (see fabric.Event's json tags).
type wireEvent struct {
	SeqNum       uint64 `json:"seq_num"`
	SessionID    uint16 `json:"session_id"`
	TransactTime uint64 `json:"transact_time"`
	SendingTime  uint64 `json:"sending_time"`
	ExecType     uint8  `json:"exec_type"`
	OrdStatus    uint8  `json:"ord_status"`
	CumQty       int64  `json:"cum_qty"`
	PriceMicro   int64  `json:"price_micro"`
	ClOrdID      string `json:"cl_ord_id"`
	OrderID      string `json:"order_id"`
	ExecID       string `json:"exec_id"`
}

func (w wireEvent) toExecEvent(stream execevent.Source, ingestNanos int64) execevent.ExecEvent {
	var ev execevent.ExecEvent
	ev.Source = stream
	ev.SeqNum = w.SeqNum
	ev.SessionID = w.SessionID
	ev.TransactTime = w.TransactTime
	ev.SendingTime = w.SendingTime
	ev.IngestNanos = ingestNanos
	ev.ExecType = execevent.ExecType(w.ExecType)
	ev.OrdStatus = execevent.OrdStatus(w.OrdStatus)
	ev.CumQty = w.CumQty
	ev.PriceMicro = w.PriceMicro
	ev.ClOrdID.SetString(w.ClOrdID)
	ev.OrderID.SetString(w.OrderID)
	ev.ExecID.SetString(w.ExecID)
	return ev
}

// Stats counts decode outcomes for observability.
type Stats struct {
	MessagesReceived uint64
	DecodeErrors     uint64
}

// Source subscribes to a single Redis Pub/Sub channel and decodes each
// message into an execevent.ExecEvent.
type Source struct {
	cfg       Config
	clock     *clock.Source
	newClient func(opts *redis.Options) redisClient

	Stats Stats
}

// pubSub is the minimal surface Source needs from *redis.PubSub.
// *redis.PubSub satisfies this directly; it exists so tests can
// substitute a fake without a live Redis server.
type pubSub interface {
	Receive(ctx context.Context) (interface{}, error)
	Channel() <-chan *redis.Message
	Close() error
}

// redisClient is the minimal surface Source needs from *redis.Client.
type redisClient interface {
	Subscribe(ctx context.Context, channels ...string) pubSub
	Close() error
}

type goredisClient struct{ *redis.Client }

func (c goredisClient) Subscribe(ctx context.Context, channels ...string) pubSub {
	return c.Client.Subscribe(ctx, channels...)
}

// New constructs a Source against a real Redis server.
func New(cfg Config, clk *clock.Source) *Source {
	return &Source{
		cfg:   cfg,
		clock: clk,
		newClient: func(opts *redis.Options) redisClient {
			return goredisClient{redis.NewClient(opts)}
		},
	}
}

// Run subscribes to cfg.Channel and decodes messages onto out until ctx
// is canceled. Returns nil on clean cancellation, a non-nil error if the
// initial subscribe fails.
func (s *Source) Run(ctx context.Context, out chan<- execevent.ExecEvent) error {
	client := s.newClient(&redis.Options{Addr: s.cfg.Addr})
	defer client.Close()

	sub := client.Subscribe(ctx, s.cfg.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redisfeed: subscribe to %s: %w", s.cfg.Channel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			s.Stats.MessagesReceived++
			var w wireEvent
			if err := json.Unmarshal([]byte(msg.Payload), &w); err != nil {
				s.Stats.DecodeErrors++
				slog.Warn("redisfeed: failed to decode message", "channel", s.cfg.Channel, "error", err)
				continue
			}
			ev := w.toExecEvent(s.cfg.Stream, s.clock.NowNanos())
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
