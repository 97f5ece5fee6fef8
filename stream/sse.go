package stream

import "strings"

// Event is one server-sent event.
type Event struct {
	// Type is the event type. Events without an explicit event field
	// carry the type "message".
	Type string

	// Data is the event payload. Multi-line payloads are joined with
	// newlines.
	Data string

	// ID is the event identifier from the id field, empty when the
	// event carried none.
	ID string
}

// sseParser assembles events from the text/event-stream wire format:
// field lines accumulate into the current event, a blank line
// dispatches it. Lines starting with ":" are comments. The retry field
// is accepted and ignored; reconnection delay is configured
// client-side.
type sseParser struct {
	// onEventID fires the moment an id field is parsed, before the
	// event dispatches, so the resume position survives a consumer
	// crash mid-event.
	onEventID func(id string)

	eventType string
	data      strings.Builder
	id        string
	started   bool
}

// feed processes one line, stripped of its trailing newline. It
// returns a complete event when the line dispatches one.
func (p *sseParser) feed(line string) (Event, bool) {
	line = strings.TrimSuffix(line, "\r")

	if line == "" {
		if !p.started {
			p.reset()
			return Event{}, false
		}
		ev := Event{
			Type: p.eventType,
			Data: p.data.String(),
			ID:   p.id,
		}
		if ev.Type == "" {
			ev.Type = "message"
		}
		p.reset()
		return ev, true
	}

	if strings.HasPrefix(line, ":") {
		return Event{}, false
	}

	field, value, found := strings.Cut(line, ":")
	if !found {
		return Event{}, false
	}
	value = strings.TrimLeft(value, " ")

	switch field {
	case "event":
		p.eventType = value
		p.started = true
	case "data":
		if p.data.Len() > 0 {
			p.data.WriteByte('\n')
		}
		p.data.WriteString(value)
		p.started = true
	case "id":
		p.id = value
		if p.onEventID != nil {
			p.onEventID(value)
		}
	}
	return Event{}, false
}

func (p *sseParser) reset() {
	p.eventType = ""
	p.data.Reset()
	p.id = ""
	p.started = false
}
