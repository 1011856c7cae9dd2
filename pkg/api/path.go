package api

import (
	"strings"

	"github.com/cuemby/restbackup/pkg/apierr"
	"github.com/cuemby/restbackup/pkg/types"
)

// TargetKind discriminates the shapes a parsed request path can take,
// per spec.md §4.1.
type TargetKind int

const (
	TargetHealth TargetKind = iota
	TargetRepo
	TargetKindList
	TargetObject
	TargetConfig
)

// Target is the result of parsing a request path: which kind of
// endpoint it names, plus the fields relevant to that kind.
type Target struct {
	Kind     TargetKind
	RepoPath string
	ObjKind  types.ObjectKind
	Name     string
	Create   bool // only meaningful for TargetRepo, from ?create=true
}

// ParsePath implements component C1: it turns a raw URL path (plus
// the create query flag, already extracted by the caller) into a
// Target, or a BadRequest error naming the violated
// rule.
//
// Accepted shapes, relative to the repo path:
//
//	/health/live        -> TargetHealth
//	/<repo>              -> TargetRepo (repo root, optionally ?create=true)
//	/<repo>/config       -> TargetConfig
//	/<repo>/<kind>/      -> TargetKindList (trailing slash mandatory)
//	/<repo>/<kind>/<name> -> TargetObject
func ParsePath(rawPath string, createFlag bool) (Target, error) {
	if rawPath == "/health/live" || rawPath == "health/live" {
		return Target{Kind: TargetHealth}, nil
	}

	trimmed := strings.Trim(rawPath, "/")
	if trimmed == "" {
		return Target{Kind: TargetRepo, RepoPath: "", Create: createFlag}, nil
	}

	hasTrailingSlash := strings.HasSuffix(rawPath, "/")
	segments := strings.Split(trimmed, "/")

	// Walk from the back: the last one or two segments may be
	// "config", "<kind>/", or "<kind>/<name>". Everything before that
	// is the repo path.
	last := segments[len(segments)-1]

	if last == "config" && len(segments) >= 1 {
		repoSegs := segments[:len(segments)-1]
		repoPath, err := joinRepoSegments(repoSegs)
		if err != nil {
			return Target{}, err
		}
		return Target{Kind: TargetConfig, RepoPath: repoPath}, nil
	}

	if kind, ok := types.ValidKind(last); ok && hasTrailingSlash {
		repoSegs := segments[:len(segments)-1]
		repoPath, err := joinRepoSegments(repoSegs)
		if err != nil {
			return Target{}, err
		}
		return Target{Kind: TargetKindList, RepoPath: repoPath, ObjKind: kind}, nil
	}

	if len(segments) >= 2 {
		if kind, ok := types.ValidKind(segments[len(segments)-2]); ok {
			name := last
			if !types.ValidName(kind, name) {
				return Target{}, apierr.New(apierr.BadRequest, "invalid object name for kind "+string(kind))
			}
			repoSegs := segments[:len(segments)-2]
			repoPath, err := joinRepoSegments(repoSegs)
			if err != nil {
				return Target{}, err
			}
			return Target{Kind: TargetObject, RepoPath: repoPath, ObjKind: kind, Name: name}, nil
		}
	}

	// No recognized suffix: the whole thing is a repo path (repo root).
	repoPath, err := joinRepoSegments(segments)
	if err != nil {
		return Target{}, err
	}
	return Target{Kind: TargetRepo, RepoPath: repoPath, Create: createFlag}, nil
}

func joinRepoSegments(segs []string) (string, error) {
	for _, s := range segs {
		if !types.ValidRepoSegment(s) {
			return "", apierr.New(apierr.BadRequest, "invalid repository path segment")
		}
	}
	return strings.Join(segs, "/"), nil
}
