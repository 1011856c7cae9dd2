/*
Package log wraps zerolog to provide the server's structured logging:
JSON or console output, a configurable level, and WithRepo/WithUser
child loggers for tagging request-scoped log lines.
*/
package log
