package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const editLine = "PCRC#1 [[Special:Log/move]] move  * Kocka *  moved [[A]] to [[B]]"

type fakeClient struct{ name string }

func newEdit() *Message {
	return New(uuid.New(), editLine, "edit")
}

func TestNewMessage(t *testing.T) {
	parser := uuid.New()
	m := New(parser, editLine, "edit")

	assert.Equal(t, parser, m.Parser())
	assert.Equal(t, editLine, m.Raw())
	assert.Equal(t, "edit", m.Type())
	assert.False(t, m.Errored())
	assert.Nil(t, m.Client())
	assert.Nil(t, m.Properties())
	assert.Equal(t, StateCreated, m.State())

	_, ok := m.ErrorMessage()
	assert.False(t, ok)
	_, ok = m.ErrorDetails()
	assert.False(t, ok)
}

func TestMarkError(t *testing.T) {
	m := newEdit()
	details := map[string]any{"ms": 5000}
	m.MarkError("fetch-timeout", "client timed out", details)

	code, ok := m.Err()
	require.True(t, ok)
	assert.Equal(t, "fetch-timeout", code)

	msg, ok := m.ErrorMessage()
	require.True(t, ok)
	assert.Equal(t, "client timed out", msg)

	got, ok := m.ErrorDetails()
	require.True(t, ok)
	assert.Equal(t, details, got)
	assert.Equal(t, StateErrored, m.State())
}

func TestMarkErrorLastWriteWins(t *testing.T) {
	m := newEdit()
	m.MarkError("fetch-timeout", "client timed out", map[string]any{"ms": 5000})
	m.MarkError("fetch-not-found", "no such page", nil)

	code, _ := m.Err()
	assert.Equal(t, "fetch-not-found", code)
	msg, _ := m.ErrorMessage()
	assert.Equal(t, "no such page", msg)
	details, ok := m.ErrorDetails()
	assert.True(t, ok)
	assert.Nil(t, details)

	assert.Equal(t, []string{"raw", "type", "error", "errorMessage", "errorDetails"}, m.Serialize().Keys())
}

func TestMarkErrorWithoutCode(t *testing.T) {
	m := newEdit()
	m.MarkError("", "something broke", nil)

	code, ok := m.Err()
	assert.True(t, ok)
	assert.Equal(t, ErrUnknown, code)
}

func TestBeginEnrichment(t *testing.T) {
	m := newEdit()
	first := &fakeClient{name: "first"}
	second := &fakeClient{name: "second"}

	m.BeginEnrichment(first, []string{"user"})
	assert.Same(t, first, m.Client())
	assert.Equal(t, StatePending, m.State())

	m.BeginEnrichment(second, []string{"user", "flags"})
	assert.Same(t, second, m.Client())
	assert.Equal(t, []string{"user", "flags"}, m.Properties())
}

func TestCleanup(t *testing.T) {
	m := newEdit()
	m.BeginEnrichment(&fakeClient{}, []string{"user", "flags"})
	m.SetInterested([]string{"discord", "logger"})
	m.MarkError("fetch-timeout", "client timed out", map[string]any{"ms": 5000})
	assert.Equal(t, StateErroredPending, m.State())

	m.Cleanup()

	assert.False(t, m.Errored())
	_, ok := m.ErrorMessage()
	assert.False(t, ok)
	_, ok = m.ErrorDetails()
	assert.False(t, ok)
	assert.Nil(t, m.Client())
	assert.Equal(t, []string{"user", "flags"}, m.Properties())
	assert.Equal(t, []string{"discord", "logger"}, m.Interested())
	assert.Equal(t, StateCreated, m.State())

	doc := m.Serialize()
	assert.False(t, doc.Has(FieldErrorMessage))
	assert.False(t, doc.Has(FieldErrorDetails))
}

func TestCleanupIdempotent(t *testing.T) {
	m := newEdit()
	m.BeginEnrichment(&fakeClient{}, []string{"user"})
	m.MarkError("fetch-http", "bad gateway", map[string]any{"status": 502})

	m.Cleanup()
	once, err := m.MarshalJSON()
	require.NoError(t, err)
	m.Cleanup()
	twice, err := m.MarshalJSON()
	require.NoError(t, err)

	assert.Equal(t, string(once), string(twice))
	assert.Equal(t, []string{"user"}, m.Properties())

	clean := newEdit()
	clean.Cleanup()
	assert.Equal(t, StateCreated, clean.State())
}

func TestResolve(t *testing.T) {
	m := newEdit()
	m.BeginEnrichment(&fakeClient{}, []string{"user"})
	require.NoError(t, m.Set("user", "Kocka"))

	m.Resolve()

	assert.Nil(t, m.Client())
	assert.Nil(t, m.Properties())
	assert.Equal(t, StateCreated, m.State())
	v, ok := m.Get("user")
	assert.True(t, ok)
	assert.Equal(t, "Kocka", v)
}

func TestReservedFields(t *testing.T) {
	m := newEdit()
	for _, name := range []string{FieldRaw, FieldType, FieldError, FieldErrorMessage, FieldErrorDetails, FieldClient} {
		assert.ErrorIs(t, m.Set(name, "x"), ErrReservedField, name)
		assert.ErrorIs(t, m.SetInternal(name, "x"), ErrReservedField, name)
	}
	assert.Equal(t, editLine, m.Raw())
	assert.Equal(t, "edit", m.Type())
}

func TestSerializeClean(t *testing.T) {
	m := newEdit()
	doc := m.Serialize()

	assert.Equal(t, []string{"raw", "type", "error"}, doc.Keys())
	v, _ := doc.Get(FieldError)
	assert.Equal(t, false, v)
}

func TestSerializeErrored(t *testing.T) {
	m := New(uuid.New(), "PCRC#1 ...", "edit")
	m.MarkError("fetch-timeout", "client timed out", map[string]any{"ms": 5000})

	out, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"raw":"PCRC#1 ...","type":"edit","error":"fetch-timeout","errorMessage":"client timed out","errorDetails":{"ms":5000}}`,
		string(out))
}

func TestSerializeFieldOrder(t *testing.T) {
	m := newEdit()
	require.NoError(t, m.Set("wiki", "community"))
	require.NoError(t, m.Set("user", "Kocka"))
	m.MarkError("fetch-timeout", "client timed out", nil)
	require.NoError(t, m.Set("wiki", "dev"))

	assert.Equal(t,
		[]string{"raw", "type", "error", "wiki", "user", "errorMessage", "errorDetails"},
		m.Serialize().Keys())

	m.Cleanup()
	m.MarkError("fetch-http", "bad gateway", nil)
	assert.Equal(t,
		[]string{"raw", "type", "error", "wiki", "user", "errorMessage", "errorDetails"},
		m.Serialize().Keys())
}

func TestSerializeInternalFields(t *testing.T) {
	m := newEdit()
	m.BeginEnrichment(&fakeClient{name: "x"}, []string{"user", "flags"})
	m.SetInterested([]string{"discord"})
	require.NoError(t, m.SetInternal("summaryCache", map[string]string{"a": "b"}))
	require.NoError(t, m.SetInternal("target", "Special:Log"))
	require.NoError(t, m.SetInternal("revisions", []int{1, 2}))

	doc := m.Serialize()

	assert.Equal(t, []string{"raw", "type", "error", "target"}, doc.Keys())
	v, _ := doc.Get("target")
	assert.Equal(t, "Special:Log", v)
}

func TestSerializeStringClientLeaks(t *testing.T) {
	m := New(uuid.New(), "PCRC#1", "edit")
	require.NoError(t, m.Set("page", "Main Page"))
	m.BeginEnrichment("clientX", []string{"user"})
	require.NoError(t, m.Set("user", "Kocka"))

	out, err := m.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t,
		`{"raw":"PCRC#1","type":"edit","error":false,"page":"Main Page","client":"clientX","user":"Kocka"}`,
		string(out))
	assert.Equal(t, "clientX", m.Client())

	_, ok := m.Get(FieldClient)
	assert.False(t, ok)
	assert.ErrorIs(t, m.Set(FieldClient, "other"), ErrReservedField)

	m.MarkError("fetch-timeout", "client timed out", nil)
	m.Cleanup()
	assert.False(t, m.Serialize().Has(FieldClient))
	assert.Equal(t, []string{"user"}, m.Properties())

	m.BeginEnrichment("clientY", m.Properties())
	m.Resolve()
	assert.False(t, m.Serialize().Has(FieldClient))
	assert.Nil(t, m.Client())
}

func TestBeginEnrichmentNilClient(t *testing.T) {
	m := newEdit()
	m.BeginEnrichment(nil, []string{"user"})

	assert.True(t, m.Pending())
	assert.Equal(t, StatePending, m.State())
	assert.Equal(t, []string{"raw", "type", "error"}, m.Serialize().Keys())

	m.Cleanup()
	assert.False(t, m.Pending())
	assert.Equal(t, StateCreated, m.State())
	assert.Equal(t, []string{"user"}, m.Properties())
}

func TestSerializeSkipsFunctions(t *testing.T) {
	m := newEdit()
	require.NoError(t, m.Set("render", func() string { return "x" }))
	require.NoError(t, m.SetInternal("hook", func() {}))
	require.NoError(t, m.Set("page", "Main Page"))

	assert.Equal(t, []string{"raw", "type", "error", "page"}, m.Serialize().Keys())
}

func TestDeleteField(t *testing.T) {
	m := newEdit()
	require.NoError(t, m.Set("page", "Main Page"))
	m.Delete("page")
	m.Delete(FieldRaw)

	_, ok := m.Get("page")
	assert.False(t, ok)
	assert.Equal(t, editLine, m.Raw())
}

func TestGetHidesErrorSlots(t *testing.T) {
	m := newEdit()
	m.MarkError("fetch-timeout", "client timed out", nil)

	_, ok := m.Get(FieldErrorMessage)
	assert.False(t, ok)
}
