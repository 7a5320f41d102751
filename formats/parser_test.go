package formats

import (
	"testing"

	"github.com/google/uuid"
)

func TestParserNew(t *testing.T) {
	p := NewParser("test")
	msg := p.New("PCRC#1 ...", TypeEdit)

	if msg.Parser() != p.ID() {
		t.Errorf("parser: got %s, want %s", msg.Parser(), p.ID())
	}
	if msg.Raw() != "PCRC#1 ..." {
		t.Errorf("raw: got %q", msg.Raw())
	}
	if msg.Type() != TypeEdit {
		t.Errorf("type: got %q", msg.Type())
	}
	if msg.Errored() {
		t.Error("message should not be errored")
	}
}

func TestParserNewInvalid(t *testing.T) {
	p := NewParser("test", TypeEdit)

	tests := []struct {
		name string
		raw  string
		typ  string
		code string
	}{
		{name: "empty line", raw: "", typ: TypeEdit, code: ErrParseEmpty},
		{name: "unknown type", raw: "PCRC#1 ...", typ: TypeLog, code: ErrParseInvalidType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := p.New(tt.raw, tt.typ)
			code, ok := msg.Err()
			if !ok || code != tt.code {
				t.Errorf("error: got (%q,%v), want %q", code, ok, tt.code)
			}
			if msg.Type() != tt.typ {
				t.Errorf("type should be stored verbatim: got %q", msg.Type())
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	p := NewParser("registry-test")
	Register(p)
	defer Unregister(p)

	if got := GetParser("registry-test"); got != p {
		t.Errorf("GetParser: got %v", got)
	}
	if got := Lookup(p.ID()); got != p {
		t.Errorf("Lookup: got %v", got)
	}
	if got := ParserOf(p.New("x", TypeLog)); got != p {
		t.Errorf("ParserOf: got %v", got)
	}
	if got := Lookup(uuid.New()); got != nil {
		t.Errorf("Lookup of unknown ID: got %v", got)
	}
}

func TestRegistryReplace(t *testing.T) {
	first := NewParser("replace-test")
	second := NewParser("replace-test")
	Register(first)
	Register(second)
	defer Unregister(second)

	if got := GetParser("replace-test"); got != second {
		t.Errorf("GetParser: got %v", got)
	}
	if got := Lookup(first.ID()); got != nil {
		t.Errorf("replaced parser still resolvable: %v", got)
	}

	Unregister(first)
	if got := GetParser("replace-test"); got != second {
		t.Errorf("unregistering a replaced parser removed its successor")
	}
}
