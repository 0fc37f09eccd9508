package redisfeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/clock"
	"github.com/PetarSt98/fx-dropcopy-primary-recon-daemon-sub000/internal/execevent"
)

type fakePubSub struct {
	ch chan *redis.Message
}

func (f *fakePubSub) Receive(ctx context.Context) (interface{}, error) { return nil, nil }
func (f *fakePubSub) Channel() <-chan *redis.Message                  { return f.ch }
func (f *fakePubSub) Close() error                                    { close(f.ch); return nil }

type fakeClient struct {
	sub *fakePubSub
}

func (f *fakeClient) Subscribe(ctx context.Context, channels ...string) pubSub { return f.sub }
func (f *fakeClient) Close() error                                            { return nil }

func newTestSource(t *testing.T, msgs []string) (*Source, *fakeClient) {
	t.Helper()
	fc := &fakeClient{sub: &fakePubSub{ch: make(chan *redis.Message, len(msgs)+1)}}
	for _, m := range msgs {
		fc.sub.ch <- &redis.Message{Payload: m}
	}
	s := New(Config{Addr: "unused:6379", Channel: "execreports.primary", Stream: execevent.Primary}, clock.New())
	s.newClient = func(opts *redis.Options) redisClient { return fc }
	return s, fc
}

func marshalWireEvent(t *testing.T, w wireEvent) string {
	t.Helper()
	data, err := json.Marshal(w)
	require.NoError(t, err)
	return string(data)
}

func TestRunDecodesMessagesOntoOutChannel(t *testing.T) {
	msg := marshalWireEvent(t, wireEvent{
		SeqNum: 7, SessionID: 3, TransactTime: 100, ExecType: uint8(execevent.ExecFill),
		OrdStatus: uint8(execevent.StatusFilled), CumQty: 50, PriceMicro: 12345,
		ClOrdID: "CL1", OrderID: "OR1", ExecID: "EX1",
	})
	s, fc := newTestSource(t, []string{msg})

	out := make(chan execevent.ExecEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	select {
	case ev := <-out:
		require.EqualValues(t, 7, ev.SeqNum)
		require.Equal(t, execevent.Primary, ev.Source)
		require.Equal(t, "CL1", ev.ClOrdID.String())
		require.EqualValues(t, 50, ev.CumQty)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded event")
	}

	cancel()
	require.NoError(t, <-done)
	require.EqualValues(t, 1, s.Stats.MessagesReceived)
	_ = fc
}

func TestRunCountsDecodeErrorsAndContinues(t *testing.T) {
	good := marshalWireEvent(t, wireEvent{SeqNum: 1, ClOrdID: "C1"})
	s, _ := newTestSource(t, []string{"not valid json", good})

	out := make(chan execevent.ExecEvent, 4)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, out) }()

	select {
	case ev := <-out:
		require.EqualValues(t, 1, ev.SeqNum)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for decoded event")
	}

	cancel()
	require.NoError(t, <-done)
	require.EqualValues(t, 1, s.Stats.DecodeErrors)
}

func TestRunReturnsNilWhenContextCanceledBeforeAnyMessage(t *testing.T) {
	s, _ := newTestSource(t, nil)
	out := make(chan execevent.ExecEvent)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Run(ctx, out)
	require.NoError(t, err)
}
