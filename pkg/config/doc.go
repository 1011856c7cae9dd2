/*
Package config loads Config in ascending-priority layers: built-in
defaults, an optional YAML file, RESTBACKUP_-prefixed environment
variables, and finally cobra flags, which cmd/restbackup copies onto
the struct only when they were set on the command line.
*/
package config
