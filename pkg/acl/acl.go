// Package acl implements the authorization engine (component C4,
// spec.md §4.4): a declarative (repository, user) -> access-level
// table overlaid with the cross-cutting global policy flags.
package acl

import (
	"strings"

	"github.com/cuemby/restbackup/pkg/types"
)

// Table is a loaded ACL: repository path -> user -> access level.
// The zero value is an empty table (every lookup falls through to the
// global policy fallbacks).
type Table map[string]map[string]types.AccessLevel

// Engine evaluates (user, repo, op_class) triples against a Table and
// a GlobalPolicy. It holds no mutable state and is safe for
// concurrent use by any number of request goroutines.
type Engine struct {
	table  Table
	policy types.GlobalPolicy
}

// New constructs an Engine from a loaded table and the process-wide
// global policy.
func New(table Table, policy types.GlobalPolicy) *Engine {
	return &Engine{table: table, policy: policy}
}

// requiredLevel maps an operation class to the minimum access level
// that grants it.
func requiredLevel(op types.OpClass) types.AccessLevel {
	switch op {
	case types.OpRead:
		return types.LevelRead
	case types.OpAppend:
		return types.LevelAppend
	case types.OpWrite:
		return types.LevelWrite
	case types.OpModify:
		return types.LevelModify
	default:
		return types.LevelModify
	}
}

// Authorize implements the six-step ordered decision procedure of
// spec.md §4.4. Each step is a separate, named check rather than a
// single flattened table lookup, so the decision stays auditable.
func (e *Engine) Authorize(user, repoPath string, op types.OpClass) bool {
	if e.policy.DisableACL {
		return true
	}

	if e.policy.AppendOnly && op == types.OpWrite {
		return false
	}

	row, ok := e.table[repoPath]
	if !ok {
		row, ok = e.table[types.DefaultRepoKey]
	}

	var level types.AccessLevel
	var found bool
	if ok {
		if level, found = row[user]; !found {
			level, found = row[types.WildcardUser]
		}
	}

	if !found {
		if e.policy.PrivateRepos {
			return firstSegment(repoPath) == user
		}
		return false
	}

	return level >= requiredLevel(op)
}

func firstSegment(repoPath string) string {
	repoPath = strings.TrimPrefix(repoPath, "/")
	if i := strings.IndexByte(repoPath, '/'); i >= 0 {
		return repoPath[:i]
	}
	return repoPath
}
