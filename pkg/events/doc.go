/*
Package events provides an in-memory pub/sub broker used to fan out
server activity (repository creation, object writes/deletes, auth
failures, ACL denials, quota rejections) to interested subscribers
without coupling the request path to them. AuditLogger is the
broker's one real subscriber: it drains every event into the process
log, at warn for denied/failed operations and info otherwise.

Publish is non-blocking: a full broker queue or a full subscriber
buffer drops the event rather than stalling the publisher. Delivery is best-effort, which is
acceptable here since nothing on the authoritative storage path
depends on an event actually being observed.
*/
package events
