/*
Package storage implements the filesystem content-addressed store
described in spec.md §4.2.

Each repository is a directory under the server's data directory with
one subdirectory per object kind plus a 256-way shard split under
data/. Writes land in a uniquely named temp file in the destination
directory and are published with os.Link, which fails atomically if
the target name is already taken — the same trick restic's own
rest-server uses to get create-exclusive semantics without an
in-process lock table. Quota accounting walks the repository subtree
on a cache miss and is bumped incrementally after each published
write or delete. Concurrent writes are each checked against the size
before any of them is published, so together they can overshoot the
quota by the size of the writes in flight.
*/
package storage
