package formats

import (
	"sync"

	"github.com/google/uuid"

	"rcfeed/models"
)

// Message variants produced from the change feed.
const (
	TypeEdit        = "edit"
	TypeLog         = "log"
	TypeDiscussions = "discussions"
	TypeError       = "error"
)

// Error codes recorded by parsers.
const (
	ErrParseEmpty       = "parse-empty"
	ErrParseInvalidType = "parse-invalid-type"
)

// DefaultTypes lists the variants a parser accepts when none are given.
var DefaultTypes = []string{TypeEdit, TypeLog, TypeDiscussions, TypeError}

// Parser turns feed lines into messages. Messages refer back to their parser
// by ID; use Lookup to resolve it.
type Parser struct {
	id    uuid.UUID
	name  string
	types map[string]bool
}

// NewParser creates a parser accepting the given message types, or
// DefaultTypes when types is empty.
func NewParser(name string, types ...string) *Parser {
	if len(types) == 0 {
		types = DefaultTypes
	}
	p := &Parser{
		id:    uuid.New(),
		name:  name,
		types: make(map[string]bool, len(types)),
	}
	for _, t := range types {
		p.types[t] = true
	}
	return p
}

// ID returns the key messages use to refer to the parser.
func (p *Parser) ID() uuid.UUID { return p.id }

// Name returns the name the parser was registered under.
func (p *Parser) Name() string { return p.name }

// Accepts reports whether the parser produces messages of type typ.
func (p *Parser) Accepts(typ string) bool { return p.types[typ] }

// New builds a message of type typ from raw. Problems with the input are
// recorded on the returned message rather than returned.
func (p *Parser) New(raw, typ string) *models.Message {
	msg := models.New(p.id, raw, typ)
	switch {
	case raw == "":
		msg.MarkError(ErrParseEmpty, "empty feed line", nil)
	case !p.Accepts(typ):
		msg.MarkError(ErrParseInvalidType, "unknown message type", map[string]any{"type": typ})
	}
	return msg
}

var (
	registryMu sync.RWMutex
	byName     = make(map[string]*Parser)
	byID       = make(map[uuid.UUID]*Parser)
)

// Register adds a parser to the registry, replacing one with the same name.
func Register(p *Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if old, ok := byName[p.name]; ok {
		delete(byID, old.id)
	}
	byName[p.name] = p
	byID[p.id] = p
}

// Unregister removes a parser from the registry.
func Unregister(p *Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if byName[p.name] == p {
		delete(byName, p.name)
	}
	delete(byID, p.id)
}

// GetParser returns a parser by name, or nil if not found.
func GetParser(name string) *Parser {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return byName[name]
}

// Lookup returns the parser with the given ID, or nil if not found.
func Lookup(id uuid.UUID) *Parser {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return byID[id]
}

// ParserOf returns the registered parser that produced msg.
func ParserOf(msg *models.Message) *Parser {
	return Lookup(msg.Parser())
}
