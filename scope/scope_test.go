package scope

import (
	"testing"

	"github.com/poiesic/docscope/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		scope  Scope
		odata  string
		global bool
	}{
		{
			name:  "guarded owner",
			scope: Scope{OwnerID: "u1"},
			odata: "owner_id eq 'u1'",
		},
		{
			name:  "guarded owner and document",
			scope: Scope{OwnerID: "u1", DocumentName: "deck.pdf"},
			odata: "owner_id eq 'u1' and filename eq 'deck.pdf'",
		},
		{
			name:   "unguarded global",
			scope:  Scope{Mode: Unguarded},
			global: true,
		},
		{
			name:   "unguarded ignores owner",
			scope:  Scope{OwnerID: "u1", Mode: Unguarded},
			global: true,
		},
		{
			name:  "unguarded document",
			scope: Scope{DocumentName: "deck.pdf", Mode: Unguarded},
			odata: "filename eq 'deck.pdf'",
		},
		{
			name:  "quotes are doubled",
			scope: Scope{OwnerID: "o'brien", DocumentName: "it's.pdf"},
			odata: "owner_id eq 'o''brien' and filename eq 'it''s.pdf'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Build(tt.scope)
			require.NoError(t, err)
			assert.Equal(t, tt.odata, f.OData())
			assert.Equal(t, tt.global, f.IsGlobal())
		})
	}
}

func TestBuildGuardedWithoutOwner(t *testing.T) {
	for _, owner := range []string{"", "   "} {
		_, err := Build(Scope{OwnerID: owner, DocumentName: "deck.pdf"})
		assert.ErrorIs(t, err, core.ErrScopeViolation)
	}
}

func TestFilterMatch(t *testing.T) {
	guarded, err := Build(Scope{OwnerID: "u1", DocumentName: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, guarded.Match("u1", "a.pdf"))
	assert.False(t, guarded.Match("u2", "a.pdf"))
	assert.False(t, guarded.Match("u1", "b.pdf"))

	global, err := Build(Scope{Mode: Unguarded})
	require.NoError(t, err)
	assert.True(t, global.Match("", "anything.pdf"))

	byDoc, err := Build(Scope{Mode: Unguarded, DocumentName: "a.pdf"})
	require.NoError(t, err)
	assert.True(t, byDoc.Match("u2", "a.pdf"))
	assert.False(t, byDoc.Match("u1", "b.pdf"))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("Unguarded")
	require.NoError(t, err)
	assert.Equal(t, Unguarded, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, Guarded, m)

	_, err = ParseMode("open")
	assert.Error(t, err)
}
