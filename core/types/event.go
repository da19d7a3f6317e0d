package types

// Attribute is a single key/value pair attached to an event.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event represents a typed event emitted during state transitions. Attributes
// retain the order in which they were added.
type Event struct {
	Type       string      `json:"type"`
	Attributes []Attribute `json:"attributes"`
}

// NewEvent constructs an event of the given type with no attributes.
func NewEvent(typ string) *Event {
	return &Event{Type: typ, Attributes: []Attribute{}}
}

// Add appends an attribute and returns the event for chaining.
func (e *Event) Add(key, value string) *Event {
	if e == nil {
		return nil
	}
	e.Attributes = append(e.Attributes, Attribute{Key: key, Value: value})
	return e
}

// Attribute returns the value of the first attribute with the supplied key.
func (e *Event) Attribute(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	clone := &Event{Type: e.Type, Attributes: make([]Attribute, len(e.Attributes))}
	copy(clone.Attributes, e.Attributes)
	return clone
}
