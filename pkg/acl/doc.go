/*
Package acl implements the authorization engine described in
spec.md §4.4: a declarative (repository, user) -> access-level table,
loaded once from a YAML policy file, evaluated against every request
alongside the process-wide global policy flags (disable_acl,
append_only, private_repos).

Authorize is an explicit six-step ordered procedure rather than a
flattened lookup table, so that a denial can always be traced to the
specific rule that produced it: disable_acl short-circuit, append-only
write block, repo-then-default row selection, user-then-wildcard
lookup, the private_repos heuristic, and finally the ordered level
comparison.
*/
package acl
