/*
Package api implements the HTTP surface of the REST backup server: path
parsing into (repo_path, target) tuples (component C1), the method and
target dispatch table that drives the storage backend (component C5),
basic-auth and ACL middleware, panic recovery, and the health/metrics
admin mux.
*/
package api
