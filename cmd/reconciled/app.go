package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sa6mwa/ejreconcile/internal/svcfields"
	"pkt.systems/pslog"
)

// submain builds the root command, wires signal-aware cancellation into
// its context, and runs it. It is a free function (not inlined in main)
// so tests can exercise it without a process exit.
func submain(ctx context.Context) int {
	baseLogger := pslog.LoggerFromEnv(context.Background(),
		pslog.WithEnvPrefix("RECONCILED_LOG_"),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeStructured, MinLevel: pslog.InfoLevel}),
		pslog.WithEnvWriter(os.Stderr),
	).With("app", "reconciled")

	cmd := newRootCommand(baseLogger)
	rootInvocation := invocationTargetsRootCommand(cmd, os.Args[1:])
	ctx = withSignalCancel(ctx)

	if _, err := cmd.ExecuteContextC(ctx); err != nil {
		if err != context.Canceled {
			if rootInvocation {
				svcfields.WithSubsystem(baseLogger, "cli.root").Error("command failed", "error", err)
			} else {
				fmt.Fprintf(os.Stderr, "%s\n", err)
			}
		}
		return 1
	}
	return 0
}

// invocationTargetsRootCommand reports whether args would dispatch to the
// root command itself (serving ejreconcile) rather than a subcommand, so
// submain knows whether a failure belongs in the structured log or on
// stderr.
func invocationTargetsRootCommand(root *cobra.Command, args []string) bool {
	if len(args) == 0 {
		return true
	}
	lookupLong := func(name string) *pflag.Flag {
		flag := root.Flags().Lookup(name)
		if flag == nil {
			flag = root.PersistentFlags().Lookup(name)
		}
		return flag
	}
	lookupShort := func(shorthand string) *pflag.Flag {
		flag := root.Flags().ShorthandLookup(shorthand)
		if flag == nil {
			flag = root.PersistentFlags().ShorthandLookup(shorthand)
		}
		return flag
	}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--":
			return true
		case strings.HasPrefix(arg, "--"):
			name := strings.TrimPrefix(arg, "--")
			if eq := strings.IndexByte(name, '='); eq >= 0 {
				name = name[:eq]
				if lookupLong(name) != nil {
					continue
				}
				return false
			}
			flag := lookupLong(name)
			if flag == nil {
				return false
			}
			if flag.Value.Type() != "bool" {
				i++
			}
		case strings.HasPrefix(arg, "-") && len(arg) > 1:
			flag := lookupShort(arg[1:2])
			if flag == nil {
				continue
			}
			if flag.Value.Type() != "bool" && len(arg) == 2 {
				i++
			}
		default:
			if cmd, _, err := root.Find(args[i:]); err == nil && cmd != root {
				return false
			}
			return true
		}
	}
	return true
}

// withSignalCancel derives a context that is canceled the first time
// SIGINT or SIGTERM is received.
func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-signals:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(signals)
	}()
	return ctx
}

// loadConfigFile reads the --config flag (or $RECONCILED_CONFIG) into
// viper, if set, returning the resolved path for logging.
func loadConfigFile() (string, error) {
	cfgPath := strings.TrimSpace(viper.GetString("config"))
	if cfgPath == "" {
		return "", nil
	}
	expanded := os.ExpandEnv(cfgPath)
	if strings.HasPrefix(expanded, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		expanded = home + strings.TrimPrefix(expanded, "~")
	}
	viper.SetConfigFile(expanded)
	if err := viper.ReadInConfig(); err != nil {
		return "", fmt.Errorf("read config file %s: %w", expanded, err)
	}
	return expanded, nil
}
