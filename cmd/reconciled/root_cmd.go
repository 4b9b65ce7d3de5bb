package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	ejreconcile "github.com/sa6mwa/ejreconcile"
	"github.com/sa6mwa/ejreconcile/internal/svcfields"
	"pkt.systems/pslog"
)

func newRootCommand(baseLogger pslog.Logger) *cobra.Command {
	var cfg ejreconcile.Config
	var mucOptionFlags []string

	cmd := &cobra.Command{
		Use:           "reconciled",
		Short:         "reconciled reconciles ejabberd's rooms, roster and room memberships against a declarative document",
		SilenceErrors: true,
		Example: `
  # point at a local ejabberd, reading/writing userdb.edn under /var/lib/reconciled
  reconciled --db-folder /var/lib/reconciled --admin-api-url https://ejabberd.example.org:5443/api --xmpp-domain example.org

  # dev loop against a throwaway instance, with a fixed password for newly-registered test users
  RECONCILED_ENV=dev RECONCILED_DEFAULT_TEST_PASSWORD=devpass123 reconciled --db-folder ./data --admin-api-url http://localhost:5280/api --xmpp-domain localhost
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := baseLogger
			cliLogger := svcfields.WithSubsystem(logger, "cli.root")
			ctx := cmd.Context()
			cmd.SilenceUsage = true

			cliLogger.Info("starting reconciled",
				"app", "reconciled",
				"pid", os.Getpid(),
			)

			configFile, err := loadConfigFile()
			if err != nil {
				return err
			}
			if configFile != "" {
				cliLogger.Info("loaded config file", "path", configFile)
			}

			if err := bindConfig(&cfg, mucOptionFlags); err != nil {
				return err
			}

			logLevel := strings.TrimSpace(viper.GetString("log-level"))
			if logLevel == "" {
				logLevel = "info"
			}
			if level, ok := pslog.ParseLevel(logLevel); ok {
				logger = logger.LogLevel(level)
				cliLogger = svcfields.WithSubsystem(logger, "cli.root")
			}

			lifecycle, err := ejreconcile.NewLifecycle(cfg, logger)
			if err != nil {
				return err
			}

			lifecycle.Start(ctx)

			<-ctx.Done()
			cliLogger.Info("shutting down")
			shutdownTimeout := 10 * time.Second
			if err := lifecycle.Shutdown(shutdownTimeout); err != nil {
				cliLogger.Error("shutdown failed", "error", err)
				return err
			}
			return nil
		},
	}

	persistentFlags := cmd.PersistentFlags()
	persistentFlags.StringP("config", "c", "", "path to YAML config file (defaults to none; flags and $RECONCILED_* env vars still apply)")
	persistentFlags.String("log-level", "info", "minimum log level (trace, debug, info, warn, error)")

	flags := cmd.Flags()
	flags.String("db-folder", "", "directory holding userdb.edn, its lock file, and the backup/ and omemo/ subtrees (required)")
	flags.String("admin-api-url", "", "base URL of ejabberd's HTTP admin API (required)")
	flags.String("xmpp-domain", "", "virtual host managed by this engine (required)")
	flags.String("muc-service", "", "MUC component JID host (defaults to conference.<xmpp-domain>)")
	flags.String("env", string(ejreconcile.EnvProd), fmt.Sprintf("runtime posture: %q, %q or %q", ejreconcile.EnvDev, ejreconcile.EnvTest, ejreconcile.EnvProd))
	flags.String("default-test-password", "", "password assigned to newly-registered users outside prod (required when env is not prod)")
	flags.Int("sync-timeout", ejreconcile.DefaultSyncTimeoutSeconds, "seconds the mutator may hold the document lock during one sync")
	flags.StringArrayVar(&mucOptionFlags, "muc-option", nil, "room configuration option merged into every managed room, as name=value (repeatable)")

	bindFlag := func(name string) {
		flag := flags.Lookup(name)
		if flag == nil {
			flag = persistentFlags.Lookup(name)
		}
		if flag == nil {
			panic(fmt.Sprintf("flag %q not found", name))
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("RECONCILED")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, name := range []string{
		"config", "log-level",
		"db-folder", "admin-api-url", "xmpp-domain", "muc-service", "env", "default-test-password", "sync-timeout",
	} {
		bindFlag(name)
	}

	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func bindConfig(cfg *ejreconcile.Config, mucOptionFlags []string) error {
	cfg.DBFolder = viper.GetString("db-folder")
	cfg.AdminAPIURL = viper.GetString("admin-api-url")
	cfg.XMPPDomain = viper.GetString("xmpp-domain")
	cfg.MUCService = viper.GetString("muc-service")
	cfg.Env = ejreconcile.Environment(viper.GetString("env"))
	cfg.DefaultTestPassword = viper.GetString("default-test-password")
	cfg.SyncTimeoutS = viper.GetInt("sync-timeout")

	opts, err := parseMUCOptions(mucOptionFlags)
	if err != nil {
		return err
	}
	cfg.ManagedMUCOptions = opts
	return nil
}

func parseMUCOptions(flags []string) ([]ejreconcile.MUCOption, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	opts := make([]ejreconcile.MUCOption, 0, len(flags))
	for _, raw := range flags {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("--muc-option %q: expected name=value", raw)
		}
		opts = append(opts, ejreconcile.MUCOption{Name: name, Value: value})
	}
	return opts, nil
}
