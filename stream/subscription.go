package stream

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/gateops/resilience"
	"github.com/jonwraymond/gateops/transport"
)

// State is a subscription's connection state.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Subscription is one live event stream. Events arrive on Events()
// until the channel closes; Err() then reports why. State is mutated
// only by the subscription's own loop.
type Subscription struct {
	client   *Client
	endpoint string
	filter   []string

	events chan Event
	state  atomic.Int32

	idMu        sync.Mutex
	lastEventID string

	ctx       context.Context
	cancel    context.CancelFunc
	closing   atomic.Bool
	closeOnce sync.Once

	done chan struct{}
	err  error
}

// Events returns the delivery channel. It closes when the
// subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err reports why the subscription ended: nil while it is running and
// after a clean Close, the rejection or exhaustion error otherwise.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// State returns the current connection state.
func (s *Subscription) State() State {
	return State(s.state.Load())
}

// LastEventID returns the identifier of the last event whose id field
// was parsed. It advances before the event is delivered, so a resumed
// stream never replays an event the parser already saw.
func (s *Subscription) LastEventID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.lastEventID
}

// Endpoint returns the endpoint this subscription streams from.
func (s *Subscription) Endpoint() string {
	return s.endpoint
}

// Close ends the subscription and waits for its loop to stop. It is
// safe to call concurrently with an in-flight reconnect: a pending
// backoff sleep is cancelled promptly and no new connection is opened
// after close.
func (s *Subscription) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.cancel()
	})
	<-s.done
	return nil
}

func (s *Subscription) setState(state State) {
	s.state.Store(int32(state))
}

func (s *Subscription) storeLastEventID(id string) {
	s.idMu.Lock()
	s.lastEventID = id
	s.idMu.Unlock()
}

func (s *Subscription) run(handle *transport.Handle, conn opener) {
	var terminal error
	defer func() {
		if s.closing.Load() {
			terminal = nil
		}
		s.err = terminal
		s.setState(Closed)
		s.client.pool.Release(handle, terminal)
		close(s.done)
		close(s.events)
	}()

	config := s.client.config
	backoff := resilience.NewBackoff(config.InitialDelay, config.MaxDelay)
	first := true

	for {
		if s.ctx.Err() != nil {
			terminal = s.ctx.Err()
			return
		}

		// The first connection gets an attempt of its own; after a
		// drop every attempt is a reconnection, bounded by MaxRetries.
		attempts := config.MaxRetries
		if first {
			attempts = config.MaxRetries + 1
		}
		retry := resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  attempts,
			InitialDelay: config.InitialDelay,
			MaxDelay:     config.MaxDelay,
			OnRetry: func(int, error, time.Duration) {
				s.setState(Reconnecting)
			},
		})

		var body io.ReadCloser
		err := retry.Execute(s.ctx, func(ctx context.Context) error {
			opened, err := conn.Open(ctx, s.filter, s.LastEventID())
			if err != nil {
				return err
			}
			body = opened
			return nil
		})
		if err != nil {
			terminal = err
			return
		}

		s.setState(Connected)
		if !first {
			if cb := config.OnReconnect; cb != nil {
				cb(s.endpoint)
			}
		}
		first = false

		readErr := s.consume(body)
		_ = body.Close()

		if s.ctx.Err() != nil {
			terminal = s.ctx.Err()
			return
		}
		if config.DisableReconnect {
			if !errors.Is(readErr, io.EOF) {
				terminal = readErr
			}
			return
		}

		// Pause before reconnecting so a server that accepts and
		// immediately drops cannot induce a hot loop. Further pauses
		// within the attempt sequence come from the retry executor.
		s.setState(Reconnecting)
		select {
		case <-time.After(backoff.Delay(1)):
		case <-s.ctx.Done():
			terminal = s.ctx.Err()
			return
		}
	}
}

// consume reads the stream until it drops, delivering events that
// pass the type filter.
func (s *Subscription) consume(body io.Reader) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	parser := &sseParser{onEventID: s.storeLastEventID}

	for scanner.Scan() {
		event, ok := parser.feed(scanner.Text())
		if !ok {
			continue
		}
		if !s.wants(event.Type) {
			continue
		}
		select {
		case s.events <- event:
		case <-s.ctx.Done():
			return s.ctx.Err()
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return err
}

func (s *Subscription) wants(eventType string) bool {
	if len(s.filter) == 0 {
		return true
	}
	for _, t := range s.filter {
		if t == eventType {
			return true
		}
	}
	return false
}
