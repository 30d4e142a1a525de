package bridge

import (
	"errors"
	"testing"
)

func TestQueueEnqueueValidation(t *testing.T) {
	tests := []struct {
		name    string
		number  string
		text    string
		wantErr error
	}{
		{"international", "+35799123456", "hi", nil},
		{"local", "99123456", "hi", nil},
		{"empty number", "", "hi", ErrBadNumber},
		{"letters", "CALL-ME", "hi", ErrBadNumber},
		{"too short", "12", "hi", ErrBadNumber},
		{"too long", "+1234567890123456", "hi", ErrBadNumber},
		{"plus only", "+", "hi", ErrBadNumber},
		{"empty text", "+35799123456", "", ErrEmptyText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue()
			err := q.Enqueue(tt.number, tt.text)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Enqueue(%q, %q) = %v, want %v", tt.number, tt.text, err, tt.wantErr)
			}
			wantLen := 1
			if tt.wantErr != nil {
				wantLen = 0
			}
			if q.Len() != wantLen {
				t.Errorf("Len() = %d, want %d", q.Len(), wantLen)
			}
		})
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()
	for _, text := range []string{"first", "second", "third"} {
		if err := q.Enqueue("+35799123456", text); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	for _, want := range []string{"first", "second", "third"} {
		m, ok := q.Dequeue()
		if !ok {
			t.Fatal("Dequeue returned empty")
		}
		if m.Text != want {
			t.Errorf("Dequeue text = %q, want %q", m.Text, want)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Error("Dequeue on empty queue reported a message")
	}
}

func TestQueueRequeueGoesToTail(t *testing.T) {
	q := NewQueue()
	q.Enqueue("+35799123456", "first")
	q.Enqueue("+35799123456", "second")

	m, _ := q.Dequeue()
	m.Attempts = 1
	q.Requeue(m)

	next, _ := q.Dequeue()
	if next.Text != "second" {
		t.Errorf("head after requeue = %q, want %q", next.Text, "second")
	}
	tail, _ := q.Dequeue()
	if tail.Text != "first" || tail.Attempts != 1 {
		t.Errorf("tail = %+v, want first with 1 attempt", tail)
	}
}
