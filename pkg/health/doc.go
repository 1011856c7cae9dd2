/*
Package health provides the Checker abstraction used by the server's
readiness probe: StorageChecker verifies the configured data directory
exists and accepts a write. Liveness (/health/live) never consults a
Checker and always returns unconditionally, per spec.md's requirement
that it answer regardless of auth, ACL, or storage state.
*/
package health
