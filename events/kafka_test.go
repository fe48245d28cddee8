package events

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ClipFinance/stargate-bridger/common/types"
	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type fakeWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	closed  bool
	entered chan struct{} // Signalled when a write starts, if set.
	release chan struct{} // Blocks writes until closed, if set.
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.entered != nil {
		w.entered <- struct{}{}
	}
	if w.release != nil {
		select {
		case <-w.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func newTestPublisher(w *fakeWriter) *Publisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Publisher{writer: w, topic: "bridger.legs", logger: logger}
}

func TestRecordLegPublishesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)
	finished := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	rec := &types.LegRecord{
		Wallet:     "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		Route:      "ab",
		Source:     types.Avalanche,
		Status:     types.LegFailed,
		SubStatus:  types.BroadcastFailed,
		FinishedAt: finished,
	}
	if err := p.RecordLeg(context.Background(), rec); err != nil {
		t.Fatalf("RecordLeg: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != rec.Wallet || !msg.Time.Equal(finished) {
		t.Errorf("key %s time %v", msg.Key, msg.Time)
	}

	var got types.LegRecord
	if err := json.Unmarshal(msg.Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Route != "ab" || got.SubStatus != types.BroadcastFailed || got.Source != types.Avalanche {
		t.Errorf("decoded = %+v", got)
	}
	if !strings.Contains(string(msg.Value), `"subStatus":"BROADCAST_FAILED"`) {
		t.Errorf("value = %s", msg.Value)
	}
}

func TestRecordLegWriteError(t *testing.T) {
	p := newTestPublisher(&fakeWriter{err: errors.New("leader not available")})

	err := p.RecordLeg(context.Background(), &types.LegRecord{Route: "pa"})
	if err == nil || !strings.Contains(err.Error(), "leader not available") {
		t.Errorf("error = %v", err)
	}
}

func TestCloseStopsPublishing(t *testing.T) {
	w := &fakeWriter{}
	p := newTestPublisher(w)

	if err := p.Close(); err != nil || !w.closed {
		t.Fatalf("Close = %v, closed %v", err, w.closed)
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close = %v", err)
	}
	if err := p.RecordLeg(context.Background(), &types.LegRecord{}); err == nil {
		t.Error("expected error after Close")
	}
}

func TestRecordLegDoesNotSerializeSlowWrites(t *testing.T) {
	w := &fakeWriter{entered: make(chan struct{}, 2), release: make(chan struct{})}
	p := newTestPublisher(w)

	errs := make(chan error, 2)
	for _, wallet := range []string{"0xaaa", "0xbbb"} {
		go func(wallet string) {
			errs <- p.RecordLeg(context.Background(), &types.LegRecord{Wallet: wallet, Route: "pa"})
		}(wallet)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-w.entered:
		case <-time.After(time.Second):
			t.Fatalf("only %d of 2 writes started while the first one is stalled", i)
		}
	}

	closed := make(chan error, 1)
	go func() { closed <- p.Close() }()
	select {
	case err := <-closed:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind a stalled write")
	}

	close(w.release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Errorf("RecordLeg: %v", err)
		}
	}
	if len(w.msgs) != 2 || !w.closed {
		t.Errorf("messages = %d, closed = %v", len(w.msgs), w.closed)
	}
}

func TestRecordLegStalledWriteHonoursContext(t *testing.T) {
	w := &fakeWriter{release: make(chan struct{})}
	p := newTestPublisher(w)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.RecordLeg(ctx, &types.LegRecord{Wallet: "0xaaa", Route: "pa"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}
