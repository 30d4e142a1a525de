package bus

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrBadPayload is returned for JSON that does not decode.
	ErrBadPayload = errors.New("malformed payload")
	// ErrMissingField is returned when a decoded payload lacks a
	// required field.
	ErrMissingField = errors.New("missing required field")
)

// OutboundPayload is what arrives on the outbox topic: a request to send
// one text message.
type OutboundPayload struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// DecodeOutbound parses and minimally validates an outbox payload.
// Malformed input is rejected here once and never retried, since
// retrying cannot repair it.
func DecodeOutbound(b []byte) (OutboundPayload, error) {
	var p OutboundPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return OutboundPayload{}, errors.Join(ErrBadPayload, err)
	}
	if p.Number == "" {
		return OutboundPayload{}, errors.Join(ErrMissingField, errors.New("number"))
	}
	if p.Text == "" {
		return OutboundPayload{}, errors.Join(ErrMissingField, errors.New("text"))
	}
	return p, nil
}

// InboundPayload is what the bridge publishes on the inbox topic for each
// message received by the modem.
type InboundPayload struct {
	Number    string `json:"number"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// EncodeInbound renders the inbox payload with an ISO-8601 UTC timestamp.
func EncodeInbound(number, text string, at time.Time) []byte {
	b, _ := json.Marshal(InboundPayload{
		Number:    number,
		Text:      text,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	return b
}

// StatusPayload is the retained bridge status document.
type StatusPayload struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// EncodeStatus renders an online/offline status payload.
func EncodeStatus(online bool, at time.Time) []byte {
	status := "offline"
	if online {
		status = "online"
	}
	b, _ := json.Marshal(StatusPayload{
		Status:    status,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	return b
}
