// Package bridge runs the transport loop between the modem and the
// message bus: polling the inbox, draining the outbound queue, and
// tracking modem reachability.
package bridge

import (
	"errors"
	"regexp"
	"sync"
	"time"
)

var (
	// ErrBadNumber rejects destination numbers that are not a plausible
	// MSISDN. Validation happens once at enqueue; a bad number is never
	// retried.
	ErrBadNumber = errors.New("invalid destination number")

	// ErrEmptyText rejects messages with no body.
	ErrEmptyText = errors.New("empty message text")
)

var numberPattern = regexp.MustCompile(`^\+?\d{3,15}$`)

// Outbound is one pending send request. Attempts counts delivery tries
// already made; it only ever grows.
type Outbound struct {
	Number     string
	Text       string
	EnqueuedAt time.Time
	Attempts   int
}

// Queue is a FIFO of pending outbound messages. Enqueue is safe to call
// from bus callbacks and HTTP handlers; the transport loop is the only
// consumer.
type Queue struct {
	mu    sync.Mutex
	items []Outbound
}

func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue validates and appends a send request. Invalid requests are
// rejected here and nowhere else; once a message is in the queue it is
// never dropped without a log line.
func (q *Queue) Enqueue(number, text string) error {
	if !numberPattern.MatchString(number) {
		return ErrBadNumber
	}
	if text == "" {
		return ErrEmptyText
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Outbound{
		Number:     number,
		Text:       text,
		EnqueuedAt: time.Now(),
	})
	return nil
}

// Dequeue pops the oldest pending message.
func (q *Queue) Dequeue() (Outbound, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Outbound{}, false
	}
	m := q.items[0]
	q.items = q.items[1:]
	return m, true
}

// Requeue puts a message back at the tail after a failed attempt. The
// caller is expected to have bumped Attempts already.
func (q *Queue) Requeue(m Outbound) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, m)
}

// Len reports the number of pending messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
