package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cuemby/restbackup/pkg/acl"
	"github.com/cuemby/restbackup/pkg/apierr"
	"github.com/cuemby/restbackup/pkg/api"
	"github.com/cuemby/restbackup/pkg/config"
	"github.com/cuemby/restbackup/pkg/events"
	"github.com/cuemby/restbackup/pkg/health"
	"github.com/cuemby/restbackup/pkg/log"
	"github.com/cuemby/restbackup/pkg/metrics"
	"github.com/cuemby/restbackup/pkg/security"
	"github.com/cuemby/restbackup/pkg/storage"
	"github.com/cuemby/restbackup/pkg/types"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST backup server",
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("data-dir", "", "Directory repositories are stored under")
	flags.String("listen", "", "Address to listen on, e.g. :8000")
	flags.String("tls-cert", "", "TLS certificate file (enables HTTPS when set with --tls-key)")
	flags.String("tls-key", "", "TLS private key file")
	flags.String("htpasswd-file", "", "htpasswd-format credentials file")
	flags.String("acl-file", "", "YAML ACL file")
	flags.Bool("disable-auth", false, "Disable authentication entirely")
	flags.Bool("disable-acl", false, "Disable ACL enforcement entirely")
	flags.Bool("private-repos", false, "Let a user with no ACL entry access only repositories whose first path segment is their username")
	flags.Bool("append-only", false, "Reject deletes and config overwrites globally")
	flags.Int64("quota-bytes", 0, "Per-repository storage quota in bytes, 0 for unlimited")
	flags.String("realm", "", "Basic auth realm presented in WWW-Authenticate challenges")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()

	configPath, _ := cmd.Flags().GetString("config")
	if err := config.LoadFile(&cfg, configPath); err != nil {
		return err
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return err
	}
	overlayFlags(cmd, &cfg)

	// log-level/log-json were applied by initLogging from flags alone,
	// before the config file and RESTBACKUP_ env vars were read; now
	// that cfg reflects every layer, re-init against the final values.
	log.Init(log.Config{Level: log.Level(cfg.LogLevel), JSONOutput: cfg.LogJSON})

	backend, err := storage.NewFSBackend(cfg.DataDir, cfg.QuotaBytes)
	if err != nil {
		return err
	}

	var creds *security.CredentialStore
	if !cfg.DisableAuth {
		if cfg.HtpasswdFile == "" {
			return apierr.New(apierr.Internal, "--htpasswd-file is required unless --disable-auth is set")
		}
		creds, err = security.LoadCredentialStore(cfg.HtpasswdFile)
		if err != nil {
			return err
		}
	}

	table := acl.Table{}
	if !cfg.DisableACL && cfg.ACLFile != "" {
		table, err = acl.LoadTable(cfg.ACLFile)
		if err != nil {
			return err
		}
	}

	policy := types.GlobalPolicy{
		DisableAuth:  cfg.DisableAuth,
		DisableACL:   cfg.DisableACL,
		PrivateRepos: cfg.PrivateRepos,
		AppendOnly:   cfg.AppendOnly,
		QuotaBytes:   cfg.QuotaBytes,
	}
	engine := acl.New(table, policy)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	auditLogger := events.NewAuditLogger(broker)
	auditLogger.Start()
	defer auditLogger.Stop()

	collector := metrics.NewCollector(backend)
	collector.Start()
	defer collector.Stop()

	checker := health.NewStorageChecker(cfg.DataDir)
	admin := api.NewAdminServer(checker)
	dispatcher := api.NewDispatcher(backend, creds, engine, policy, cfg.Realm, broker)

	server, err := api.NewServer(api.ServerConfig{
		Addr:        cfg.ListenAddr,
		Dispatcher:  dispatcher,
		Admin:       admin,
		TLSCertFile: cfg.TLSCertFile,
		TLSKeyFile:  cfg.TLSKeyFile,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Logger.Info().Str("addr", cfg.ListenAddr).Str("data_dir", cfg.DataDir).Msg("server listening")
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		if err != nil {
			log.Logger.Error().Err(err).Msg("server error")
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Logger.Error().Err(err).Msg("graceful shutdown failed")
		return err
	}
	return nil
}

func overlayFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	if flags.Changed("tls-cert") {
		cfg.TLSCertFile, _ = flags.GetString("tls-cert")
	}
	if flags.Changed("tls-key") {
		cfg.TLSKeyFile, _ = flags.GetString("tls-key")
	}
	if flags.Changed("htpasswd-file") {
		cfg.HtpasswdFile, _ = flags.GetString("htpasswd-file")
	}
	if flags.Changed("acl-file") {
		cfg.ACLFile, _ = flags.GetString("acl-file")
	}
	if flags.Changed("disable-auth") {
		cfg.DisableAuth, _ = flags.GetBool("disable-auth")
	}
	if flags.Changed("disable-acl") {
		cfg.DisableACL, _ = flags.GetBool("disable-acl")
	}
	if flags.Changed("private-repos") {
		cfg.PrivateRepos, _ = flags.GetBool("private-repos")
	}
	if flags.Changed("append-only") {
		cfg.AppendOnly, _ = flags.GetBool("append-only")
	}
	if flags.Changed("quota-bytes") {
		cfg.QuotaBytes, _ = flags.GetInt64("quota-bytes")
	}
	if flags.Changed("realm") {
		cfg.Realm, _ = flags.GetString("realm")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-json") {
		cfg.LogJSON, _ = flags.GetBool("log-json")
	}
}
