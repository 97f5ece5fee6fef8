package events

// MultiEmitter fans each event out to every configured sink.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates a fan-out emitter.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) Emit(event DecisionEvent) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}

var _ Emitter = (*MultiEmitter)(nil)
