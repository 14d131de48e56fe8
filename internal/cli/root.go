// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nexusai/nexus-tui/internal/config"
	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/ui/chat"
	"github.com/nexusai/nexus-tui/internal/ui/styles"
)

// BuildInfo is set from ldflags in main.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

func (b BuildInfo) versionTemplate() string {
	if b.Commit != "" && b.Commit != "unknown" {
		return fmt.Sprintf("nexus %s\n  commit: %s\n  built:  %s\n", b.Version, b.Commit, b.Date)
	}
	return fmt.Sprintf("nexus %s\n", b.Version)
}

// NewRootCommand builds the nexus command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "nexus",
		Short: "Terminal client for the nexus chat backend",
		Long: `nexus is a terminal chat client. Without a subcommand it opens the
interactive UI; the subcommands script the same backend.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       info.Version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, flags, info)
		},
	}
	root.SetVersionTemplate(info.versionTemplate())

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.nexus/config.toml)")
	pf.StringVar(&flags.backendURL, "backend-url", "", "backend base URL")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	root.AddCommand(
		newLoginCommand(flags, info),
		newLogoutCommand(flags, info),
		newWhoamiCommand(flags, info),
		newSessionsCommand(flags, info),
		newModelsCommand(flags, info),
		newAskCommand(flags, info),
		newMemoriesCommand(flags, info),
		newExportCommand(flags, info),
		newConfigCommand(flags),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, info BuildInfo, args []string) int {
	root := NewRootCommand(info)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
	}
	return ExitCode(err)
}

// withApp builds the client stack, runs fn and tears the stack down.
func withApp(cmd *cobra.Command, flags *globalFlags, info BuildInfo, fn func(context.Context, *App) error) error {
	app, err := newApp(flags, info.Version, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(cmd.Context(), app)
}

// =============================================================================
// TUI
// =============================================================================

func runTUI(cmd *cobra.Command, flags *globalFlags, info BuildInfo) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) {
		return errors.New("the interactive UI needs a terminal; see `nexus --help` for scriptable commands")
	}

	// The UI owns the terminal, so logs without a file are dropped.
	app, err := newApp(flags, info.Version, io.Discard)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	err = config.Watch(ctx, app.ConfigPath, func(cfg *config.Config, err error) {
		if err != nil {
			app.Log.WithError(err).Warn("config reload failed")
			return
		}
		level, err := logging.ParseLevel(cfg.Log.Level)
		if err != nil {
			app.Log.WithError(err).Warn("ignoring invalid log level")
			return
		}
		if level != app.Log.GetLevel() {
			app.Log.SetLevel(level)
			app.Log.WithField("level", level.String()).Info("log level changed")
		}
	})
	if err != nil {
		app.Log.WithError(err).Warn("config changes will not be picked up")
	}

	theme, err := styles.NewTheme(app.Config.UI.Theme)
	if err != nil {
		return err
	}

	m := chat.New(app.Ctrl, theme,
		chat.WithContext(ctx),
		chat.WithDemoIdentity(app.Config.Auth.DemoEmail, app.Config.Auth.DemoName),
		chat.WithTimestamps(app.Config.UI.ShowTimestamps),
		chat.WithExportDir(app.Config.UI.ExportDir),
	)
	defer m.Close()

	app.Log.Info("starting interactive UI")
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("ui: %w", err)
	}
	return nil
}
