package gammu

import (
	"bufio"
	"bytes"
	"strings"
)

// Message is one inbound text message parsed from the modem's storage
// report. Location identifies the modem storage slot so the message can
// be deleted after it has been forwarded.
type Message struct {
	Number   string
	Text     string
	Location string
}

// recordMark delimits message records in gammu's getallsms report.
const recordMark = "SMS message"

// Recognized field prefixes inside a record. Everything else is noise.
const (
	fieldNumber       = "Number"
	fieldRemoteNumber = "Remote number"
	fieldText         = "Text"
	fieldLocation     = "Location"
)

// Records is a bufio.SplitFunc that yields one inbox record per token.
// It segments the report on the record delimiter; preamble before the
// first delimiter is skipped.
func Records(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	mark := []byte(recordMark)

	i := bytes.Index(data, mark)
	if i < 0 {
		if atEOF {
			// Trailing noise without a record.
			return len(data), nil, nil
		}
		return 0, nil, nil
	}
	if i > 0 {
		// Skip preamble up to the first delimiter.
		return i, nil, nil
	}

	// data starts at a delimiter; the record runs until the next one.
	if j := bytes.Index(data[len(mark):], mark); j >= 0 {
		end := len(mark) + j
		return end, data[:end], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

var _ bufio.SplitFunc = Records

// ParseReport extracts messages from a getallsms report. Records lacking
// both a number and non-empty text are dropped silently; they are noise
// or partial output, not errors. A non-nil error means the scan aborted
// early, typically on a record exceeding the buffer limit, and the
// returned messages are only the ones parsed up to that point.
func ParseReport(report string) ([]Message, error) {
	var messages []Message

	scanner := bufio.NewScanner(strings.NewReader(report))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(Records)

	for scanner.Scan() {
		if m, ok := parseRecord(scanner.Text()); ok {
			messages = append(messages, m)
		}
	}
	return messages, scanner.Err()
}

// parseRecord scans one record line by line for the recognized field
// prefixes. The second return value is false when the record is not a
// usable message.
func parseRecord(record string) (Message, bool) {
	var m Message

	for _, line := range strings.Split(record, "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch key {
		case fieldNumber, fieldRemoteNumber:
			m.Number = strings.Trim(value, `"`)
		case fieldText:
			m.Text = value
		case fieldLocation:
			m.Location = value
		}
	}

	if m.Number == "" || m.Text == "" {
		return Message{}, false
	}
	return m, true
}
