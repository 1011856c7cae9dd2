// Package config loads the server's process-wide configuration from
// (in ascending priority) built-in defaults, an optional YAML file,
// environment variables prefixed RESTBACKUP_, and CLI flags bound by
// cmd/restbackup.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/restbackup/pkg/apierr"
)

// Config holds every field the server needs at startup. Fields mirror
// the flags of the rustic-rs rest-server, adapted to this repo's
// naming.
type Config struct {
	DataDir      string `yaml:"data_dir"`
	ListenAddr   string `yaml:"listen_addr"`
	TLSCertFile  string `yaml:"tls_cert_file"`
	TLSKeyFile   string `yaml:"tls_key_file"`
	HtpasswdFile string `yaml:"htpasswd_file"`
	ACLFile      string `yaml:"acl_file"`
	DisableAuth  bool   `yaml:"disable_auth"`
	DisableACL   bool   `yaml:"disable_acl"`
	PrivateRepos bool   `yaml:"private_repos"`
	AppendOnly   bool   `yaml:"append_only"`
	QuotaBytes   int64  `yaml:"quota_bytes"`
	LogLevel     string `yaml:"log_level"`
	LogJSON      bool   `yaml:"log_json"`
	Realm        string `yaml:"realm"`
}

// Default returns the built-in defaults, the lowest-priority layer.
func Default() Config {
	return Config{
		DataDir:    "./data",
		ListenAddr: ":8000",
		LogLevel:   "info",
		Realm:      "rustic",
	}
}

// LoadFile overlays cfg with the contents of a YAML file at path. A
// missing file is not an error; every other field stays at its
// current value unless present in the file.
func LoadFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return apierr.Wrap(apierr.Internal, "failed to read config file", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return apierr.Wrap(apierr.Internal, "failed to parse config file", err)
	}
	return nil
}

// envPrefix is prepended to every environment variable this package
// consults, e.g. RESTBACKUP_DATA_DIR.
const envPrefix = "RESTBACKUP_"

// ApplyEnv overlays cfg with any RESTBACKUP_* environment variables
// that are set, in the same field-name-to-SCREAMING_SNAKE_CASE
// mapping as the YAML tags.
func ApplyEnv(cfg *Config) error {
	if v, ok := lookupEnv("DATA_DIR"); ok {
		cfg.DataDir = v
	}
	if v, ok := lookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}
	if v, ok := lookupEnv("TLS_CERT_FILE"); ok {
		cfg.TLSCertFile = v
	}
	if v, ok := lookupEnv("TLS_KEY_FILE"); ok {
		cfg.TLSKeyFile = v
	}
	if v, ok := lookupEnv("HTPASSWD_FILE"); ok {
		cfg.HtpasswdFile = v
	}
	if v, ok := lookupEnv("ACL_FILE"); ok {
		cfg.ACLFile = v
	}
	if v, ok := lookupEnv("DISABLE_AUTH"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_DISABLE_AUTH", err)
		}
		cfg.DisableAuth = b
	}
	if v, ok := lookupEnv("DISABLE_ACL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_DISABLE_ACL", err)
		}
		cfg.DisableACL = b
	}
	if v, ok := lookupEnv("PRIVATE_REPOS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_PRIVATE_REPOS", err)
		}
		cfg.PrivateRepos = b
	}
	if v, ok := lookupEnv("APPEND_ONLY"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_APPEND_ONLY", err)
		}
		cfg.AppendOnly = b
	}
	if v, ok := lookupEnv("QUOTA_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_QUOTA_BYTES", err)
		}
		cfg.QuotaBytes = n
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := lookupEnv("LOG_JSON"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return apierr.Wrap(apierr.Internal, "invalid RESTBACKUP_LOG_JSON", err)
		}
		cfg.LogJSON = b
	}
	if v, ok := lookupEnv("REALM"); ok {
		cfg.Realm = v
	}
	return nil
}

func lookupEnv(suffix string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}
