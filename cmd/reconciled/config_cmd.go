package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sa6mwa/ejreconcile/document"
	"github.com/sa6mwa/ejreconcile/store"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and validate the on-disk configuration document",
	}
	cmd.AddCommand(newConfigValidateCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigLockCommand())
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Parse and validate a userdb.edn file without opening a store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			if _, err := document.ParseAndValidate(raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", args[0])
			return nil
		},
	}
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	var dbFolder string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current document as indented JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(store.Config{Folder: dbFolder})
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			doc, _, err := st.Read()
			if err != nil {
				return fmt.Errorf("read document: %w", err)
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbFolder, "db-folder", "", "directory holding userdb.edn (required)")
	cmd.MarkFlagRequired("db-folder")
	return cmd
}

func newConfigLockCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock",
		Short: "Inspect or clear the document's advisory lock",
	}
	cmd.AddCommand(newConfigLockStatusCommand())
	cmd.AddCommand(newConfigLockClearCommand())
	return cmd
}

func newConfigLockStatusCommand() *cobra.Command {
	var dbFolder string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print whether the document is currently locked",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(store.Config{Folder: dbFolder})
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			locked, reason, expiresAt, err := st.ReadLock()
			if err != nil {
				return fmt.Errorf("read lock: %w", err)
			}
			if !locked {
				fmt.Fprintln(cmd.OutOrStdout(), "unlocked")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "locked: %s (expires %s)\n", reason, humanize.Time(expiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&dbFolder, "db-folder", "", "directory holding userdb.edn (required)")
	cmd.MarkFlagRequired("db-folder")
	return cmd
}

func newConfigLockClearCommand() *cobra.Command {
	var dbFolder string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Forcibly remove the lock file (use only when a holder crashed without releasing it)",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(store.Config{Folder: dbFolder})
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			if err := st.ClearLock(); err != nil {
				return fmt.Errorf("clear lock: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "lock cleared")
			return nil
		},
	}
	cmd.Flags().StringVar(&dbFolder, "db-folder", "", "directory holding userdb.edn (required)")
	cmd.MarkFlagRequired("db-folder")
	return cmd
}
