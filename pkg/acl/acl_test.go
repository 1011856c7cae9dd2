package acl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/restbackup/pkg/types"
)

func TestDisableACLAllowsEverything(t *testing.T) {
	e := New(Table{}, types.GlobalPolicy{DisableACL: true})
	assert.True(t, e.Authorize("anyone", "alice/photos", types.OpModify))
}

func TestAppendOnlyBlocksWrites(t *testing.T) {
	table := Table{"alice/photos": {"alice": types.LevelModify}}
	e := New(table, types.GlobalPolicy{AppendOnly: true})
	assert.False(t, e.Authorize("alice", "alice/photos", types.OpWrite))
	assert.True(t, e.Authorize("alice", "alice/photos", types.OpRead))
}

func TestExplicitRowTakesPriorityOverDefault(t *testing.T) {
	table := Table{
		"default":      {"*": types.LevelRead},
		"alice/photos": {"alice": types.LevelModify},
	}
	e := New(table, types.GlobalPolicy{})
	assert.True(t, e.Authorize("alice", "alice/photos", types.OpModify))
	assert.False(t, e.Authorize("bob", "alice/photos", types.OpRead), "bob has no entry in the explicit row and default does not apply once a row is matched")
}

func TestDefaultRowFallback(t *testing.T) {
	table := Table{"default": {"*": types.LevelRead}}
	e := New(table, types.GlobalPolicy{})
	assert.True(t, e.Authorize("anyone", "some/repo", types.OpRead))
	assert.False(t, e.Authorize("anyone", "some/repo", types.OpWrite))
}

func TestWildcardUserFallback(t *testing.T) {
	table := Table{"alice/photos": {"*": types.LevelAppend}}
	e := New(table, types.GlobalPolicy{})
	assert.True(t, e.Authorize("stranger", "alice/photos", types.OpAppend))
	assert.False(t, e.Authorize("stranger", "alice/photos", types.OpWrite))
}

func TestPrivateReposHeuristic(t *testing.T) {
	e := New(Table{}, types.GlobalPolicy{PrivateRepos: true})
	assert.True(t, e.Authorize("alice", "alice/photos", types.OpModify))
	assert.False(t, e.Authorize("bob", "alice/photos", types.OpModify))
}

func TestNoMatchDeniesWithoutPrivateRepos(t *testing.T) {
	e := New(Table{}, types.GlobalPolicy{})
	assert.False(t, e.Authorize("alice", "alice/photos", types.OpRead))
}

func TestLevelOrderingGrantsHigherLevelsLowerOps(t *testing.T) {
	table := Table{"r": {"alice": types.LevelModify}}
	e := New(table, types.GlobalPolicy{})
	assert.True(t, e.Authorize("alice", "r", types.OpRead))
	assert.True(t, e.Authorize("alice", "r", types.OpAppend))
	assert.True(t, e.Authorize("alice", "r", types.OpWrite))
	assert.True(t, e.Authorize("alice", "r", types.OpModify))
}

func TestLevelOrderingDeniesUnderQualifiedUser(t *testing.T) {
	table := Table{"r": {"alice": types.LevelAppend}}
	e := New(table, types.GlobalPolicy{})
	assert.True(t, e.Authorize("alice", "r", types.OpAppend))
	assert.False(t, e.Authorize("alice", "r", types.OpWrite))
	assert.False(t, e.Authorize("alice", "r", types.OpModify))
}

func TestParseTable(t *testing.T) {
	raw := []byte(`
default:
  "*": read
alice/photos:
  alice: modify
  bob: append
`)
	table, err := ParseTable(raw)
	require.NoError(t, err)
	assert.Equal(t, types.LevelRead, table["default"]["*"])
	assert.Equal(t, types.LevelModify, table["alice/photos"]["alice"])
	assert.Equal(t, types.LevelAppend, table["alice/photos"]["bob"])
}

func TestParseTableRejectsUnknownLevel(t *testing.T) {
	raw := []byte(`
alice/photos:
  alice: superuser
`)
	_, err := ParseTable(raw)
	assert.Error(t, err)
}
