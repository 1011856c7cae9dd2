// Package types defines the shared domain model for the REST backup
// server: object kinds, ACL access levels, and the global policy
// flags that every other package reasons about.
package types
