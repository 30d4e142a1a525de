package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"i4.energy/across/smsbridge/gammu"
)

// Modem is the subset of the gammu client the loop drives. Every call
// happens from the single loop goroutine, which is what serializes
// access to the serial link.
type Modem interface {
	Device() string
	SetDevice(path string)
	Identify(ctx context.Context) error
	Send(ctx context.Context, number, text string) error
	ListInbox(ctx context.Context) ([]gammu.Message, error)
	Delete(ctx context.Context, folder, location string) error
}

// Publisher forwards bridge traffic to the message bus.
type Publisher interface {
	PublishInbound(number, text string, at time.Time) error
	PublishStatus(online bool) error
}

// Notifier receives best-effort host automation callbacks. Failures are
// the implementation's problem; the loop never checks them.
type Notifier interface {
	ModemConnected(connected bool)
	MessageReceived(number, text string)
}

// inboxFolder is gammu's folder index for received messages.
const inboxFolder = "1"

const defaultPollInterval = 10 * time.Second

// Status is a snapshot of the bridge's view of the modem, kept as a
// value so reachability transitions are detected by comparing
// consecutive snapshots.
type Status struct {
	Connected bool
	Device    string
	Pending   int
	Abandoned int
}

// Loop is the transport loop. Construct with NewLoop, adjust the public
// fields, then drive with Run; after that only Status may be called from
// other goroutines.
type Loop struct {
	modem    Modem
	queue    *Queue
	bus      Publisher
	notifier Notifier
	logger   *slog.Logger

	// PollInterval is the cycle period. Zero means the default.
	PollInterval time.Duration

	// MaxAttempts abandons an outbound message after this many failed
	// sends. Zero disables abandonment.
	MaxAttempts int

	// Rediscover is consulted when no device is configured. It returns a
	// device path, or empty when the hardware is still absent.
	Rediscover func() string

	mu        sync.Mutex
	status    Status
	abandoned int
}

func NewLoop(modem Modem, queue *Queue, bus Publisher, notifier Notifier, logger *slog.Logger) *Loop {
	return &Loop{
		modem:        modem,
		queue:        queue,
		bus:          bus,
		notifier:     notifier,
		logger:       logger,
		PollInterval: defaultPollInterval,
	}
}

// Status returns the snapshot taken at the end of the last cycle. Safe
// to call from other goroutines.
func (l *Loop) Status() Status {
	l.mu.Lock()
	s := l.status
	s.Abandoned = l.abandoned
	l.mu.Unlock()
	s.Pending = l.queue.Len()
	return s
}

// Run drives the loop until ctx is cancelled, then publishes a final
// offline status. It never returns early: with no modem present it keeps
// cycling in degraded mode waiting for hardware.
func (l *Loop) Run(ctx context.Context) {
	interval := l.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	l.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			if err := l.bus.PublishStatus(false); err != nil {
				l.logger.Warn("final status publish failed", "error", err)
			}
			return
		case <-ticker.C:
			l.cycle(ctx)
		}
	}
}

func (l *Loop) cycle(ctx context.Context) {
	if l.modem.Device() == "" {
		if l.Rediscover != nil {
			if path := l.Rediscover(); path != "" {
				l.logger.Info("modem appeared", "device", path)
				l.modem.SetDevice(path)
			}
		}
		if l.modem.Device() == "" {
			l.transition(false)
			return
		}
	}

	connected := l.modem.Identify(ctx) == nil
	l.transition(connected)
	if !connected || ctx.Err() != nil {
		return
	}

	l.pollInbox(ctx)
	if ctx.Err() != nil {
		return
	}
	l.drainOutbound(ctx)
}

// transition compares the new reachability against the last snapshot and
// announces changes exactly once.
func (l *Loop) transition(connected bool) {
	l.mu.Lock()
	prev := l.status
	l.status = Status{
		Connected: connected,
		Device:    l.modem.Device(),
		Abandoned: l.abandoned,
	}
	l.mu.Unlock()
	if connected == prev.Connected {
		return
	}
	if connected {
		l.logger.Info("modem reachable", "device", l.status.Device)
	} else {
		l.logger.Warn("modem unreachable", "device", l.status.Device)
	}
	if err := l.bus.PublishStatus(connected); err != nil {
		l.logger.Warn("status publish failed", "error", err)
	}
	if l.notifier != nil {
		l.notifier.ModemConnected(connected)
	}
}

// pollInbox forwards stored messages to the bus. A slot is deleted only
// after its publish succeeded; a failed publish leaves the message on
// the modem for the next cycle.
func (l *Loop) pollInbox(ctx context.Context) {
	messages, err := l.modem.ListInbox(ctx)
	if err != nil {
		l.logger.Warn("inbox poll failed", "error", err)
		return
	}
	for _, m := range messages {
		if ctx.Err() != nil {
			return
		}
		if err := l.bus.PublishInbound(m.Number, m.Text, time.Now()); err != nil {
			l.logger.Warn("inbound publish failed, keeping message on modem",
				"number", m.Number,
				"location", m.Location,
				"error", err)
			continue
		}
		l.logger.Info("message received", "number", m.Number, "location", m.Location)
		if l.notifier != nil {
			l.notifier.MessageReceived(m.Number, m.Text)
		}
		if m.Location == "" {
			continue
		}
		if err := l.modem.Delete(ctx, inboxFolder, m.Location); err != nil {
			// The message was already published; a duplicate next cycle
			// beats losing it.
			l.logger.Warn("inbox delete failed", "location", m.Location, "error", err)
		}
	}
}

// drainOutbound sends pending messages in FIFO order. The first failure
// requeues the message at the tail and ends the drain; the poll interval
// is the backoff.
func (l *Loop) drainOutbound(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		m, ok := l.queue.Dequeue()
		if !ok {
			return
		}
		err := l.modem.Send(ctx, m.Number, m.Text)
		if err == nil {
			l.logger.Info("message sent", "number", m.Number, "attempts", m.Attempts+1)
			continue
		}

		// Shutdown is not a delivery failure; the message goes back
		// untouched for the next run.
		if errors.Is(err, context.Canceled) {
			l.queue.Requeue(m)
			return
		}

		m.Attempts++
		if l.MaxAttempts > 0 && m.Attempts >= l.MaxAttempts {
			l.mu.Lock()
			l.abandoned++
			l.mu.Unlock()
			l.logger.Error("abandoning message after repeated send failures",
				"number", m.Number,
				"attempts", m.Attempts,
				"error", err)
			continue
		}
		l.logger.Warn("send failed, requeued",
			"number", m.Number,
			"attempts", m.Attempts,
			"error", err)
		l.queue.Requeue(m)
		return
	}
}
