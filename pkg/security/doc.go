/*
Package security implements authentication for the REST backup server
(component C3, spec.md §4.3): an htpasswd-compatible credential store
and an optional TLS certificate loader for the HTTPS listener.

Verify auto-detects the hash family from its prefix and dispatches to
golang.org/x/crypto/bcrypt, github.com/GehirnInc/crypt for apr1/md5crypt,
stdlib crypto/sha1 for the legacy {SHA} format, or
github.com/amoghe/go-crypt for bare DES crypt(3) hashes. A lookup miss
still runs a dummy comparison so that response latency does not reveal
which usernames exist.
*/
package security
