/*
Package metrics defines the server's Prometheus instrumentation:
request counts by method/status, latency by method, bytes read and written,
and counters for the three ways a request can be turned away (ACL
denial, auth failure, quota rejection). Handler exposes the registry
over HTTP for scraping; Collector periodically refreshes the
repository-count gauge, which is cheaper to poll than to keep exact on
every write.
*/
package metrics
