package models

import (
	"errors"
	"reflect"
	"slices"

	"github.com/google/uuid"
)

// Names of the slots every message carries. Variant fields may not reuse them.
const (
	FieldRaw          = "raw"
	FieldType         = "type"
	FieldError        = "error"
	FieldErrorMessage = "errorMessage"
	FieldErrorDetails = "errorDetails"
	FieldClient       = "client"
)

// ErrUnknown is recorded when MarkError is called without a code, so that an
// errored message never carries a falsy error.
const ErrUnknown = "unknown"

var ErrReservedField = errors.New("field name is reserved")

// State is the position of a message in its enrichment lifecycle.
type State int

const (
	StateCreated State = iota
	StatePending
	StateErrored
	StateErroredPending
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateErrored:
		return "errored"
	case StateErroredPending:
		return "errored-pending"
	default:
		return "created"
	}
}

// slot is one named value in the ordered part of a message.
type slot struct {
	name     string
	value    any
	internal bool
}

// Message is one parsed event line from the change feed.
//
// A message is a plain value object: it does no locking, and whoever
// currently holds it (parser, enrichment client, serializer) has exclusive
// mutable access to it.
type Message struct {
	parser uuid.UUID
	raw    string
	typ    string

	// errCode is empty when no error has been recorded.
	errCode string
	slots   []slot

	properties []string
	interested []string
}

// New creates a message produced by the parser identified by parser.
// raw and typ are stored verbatim.
func New(parser uuid.UUID, raw, typ string) *Message {
	return &Message{
		parser: parser,
		raw:    raw,
		typ:    typ,
	}
}

// Parser returns the key of the parser that produced the message.
func (m *Message) Parser() uuid.UUID { return m.parser }

// Raw returns the unparsed line the message was built from.
func (m *Message) Raw() string { return m.raw }

// Type returns the message variant.
func (m *Message) Type() string { return m.typ }

// Err returns the error code and whether one is set.
func (m *Message) Err() (string, bool) {
	return m.errCode, m.errCode != ""
}

// Errored reports whether an error is recorded.
func (m *Message) Errored() bool { return m.errCode != "" }

// ErrorMessage returns the human-readable error, if an error is recorded.
func (m *Message) ErrorMessage() (string, bool) {
	v, ok := m.lookup(FieldErrorMessage)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, true
}

// ErrorDetails returns the diagnostic payload, if an error is recorded.
func (m *Message) ErrorDetails() (any, bool) {
	return m.lookup(FieldErrorDetails)
}

// MarkError records a failure on the message, replacing any previous one.
func (m *Message) MarkError(code, message string, details any) {
	if code == "" {
		code = ErrUnknown
	}
	m.errCode = code
	m.put(FieldErrorMessage, message, false)
	m.put(FieldErrorDetails, details, false)
}

// BeginEnrichment stores the client and the properties it should resolve.
// Nothing is fetched here; the client performs the lookup.
//
// The client is kept as an internal field, so a client given as a plain
// string shows up in the serialized form. A nil client still starts an
// enrichment.
func (m *Message) BeginEnrichment(client any, properties []string) {
	m.put(FieldClient, client, true)
	m.properties = properties
}

// Client returns the client of the enrichment in flight, or nil.
func (m *Message) Client() any {
	v, _ := m.lookup(FieldClient)
	return v
}

// Pending reports whether an enrichment has begun and not been resolved or
// cleaned up.
func (m *Message) Pending() bool {
	_, ok := m.lookup(FieldClient)
	return ok
}

// Properties returns the properties requested for enrichment.
func (m *Message) Properties() []string { return m.properties }

// SetInterested records the consumers interested in the message.
func (m *Message) SetInterested(consumers []string) { m.interested = consumers }

// Interested returns the consumers interested in the message.
func (m *Message) Interested() []string { return m.interested }

// Cleanup resets the message after a failed enrichment so it can be retried.
// The requested properties and the interested consumers are kept, since the
// client derives them only once.
func (m *Message) Cleanup() {
	m.errCode = ""
	m.remove(FieldErrorMessage)
	m.remove(FieldErrorDetails)
	m.remove(FieldClient)
}

// Resolve ends a successful enrichment, dropping the client and the request.
// Any recorded error is left as is.
func (m *Message) Resolve() {
	m.remove(FieldClient)
	m.properties = nil
}

// State reports where the message is in its lifecycle.
func (m *Message) State() State {
	pending := m.Pending()
	switch {
	case m.Errored() && pending:
		return StateErroredPending
	case m.Errored():
		return StateErrored
	case pending:
		return StatePending
	default:
		return StateCreated
	}
}

// Set defines or replaces a public variant field.
func (m *Message) Set(name string, value any) error {
	if isReserved(name) {
		return ErrReservedField
	}
	m.put(name, value, false)
	return nil
}

// SetInternal defines or replaces an internal variant field. Internal fields
// are left out of the serialized form unless they hold a plain string.
func (m *Message) SetInternal(name string, value any) error {
	if isReserved(name) {
		return ErrReservedField
	}
	m.put(name, value, true)
	return nil
}

// Get returns a variant field.
func (m *Message) Get(name string) (any, bool) {
	if name == FieldErrorMessage || name == FieldErrorDetails || name == FieldClient {
		return nil, false
	}
	return m.lookup(name)
}

// Delete removes a variant field.
func (m *Message) Delete(name string) {
	if isReserved(name) {
		return
	}
	m.remove(name)
}

// Serialize returns the wire form of the message.
func (m *Message) Serialize() *Document {
	doc := &Document{}
	doc.Append(FieldRaw, m.raw)
	doc.Append(FieldType, m.typ)
	if m.errCode != "" {
		doc.Append(FieldError, m.errCode)
	} else {
		doc.Append(FieldError, false)
	}

	for _, s := range m.slots {
		if !serializable(s) {
			continue
		}
		doc.Append(s.name, s.value)
	}
	return doc
}

// MarshalJSON encodes the serialized form of the message.
func (m *Message) MarshalJSON() ([]byte, error) {
	return m.Serialize().MarshalJSON()
}

func (m *Message) put(name string, value any, internal bool) {
	for i := range m.slots {
		if m.slots[i].name == name {
			m.slots[i].value = value
			m.slots[i].internal = internal
			return
		}
	}
	m.slots = append(m.slots, slot{name: name, value: value, internal: internal})
}

func (m *Message) lookup(name string) (any, bool) {
	for _, s := range m.slots {
		if s.name == name {
			return s.value, true
		}
	}
	return nil, false
}

func (m *Message) remove(name string) {
	m.slots = slices.DeleteFunc(m.slots, func(s slot) bool { return s.name == name })
}

func isReserved(name string) bool {
	switch name {
	case FieldRaw, FieldType, FieldError, FieldErrorMessage, FieldErrorDetails, FieldClient:
		return true
	}
	return false
}

// serializable applies the output filter: functions never, internal slots
// only when they hold a string.
func serializable(s slot) bool {
	if s.value != nil && reflect.TypeOf(s.value).Kind() == reflect.Func {
		return false
	}
	if s.internal {
		_, ok := s.value.(string)
		return ok
	}
	return true
}
