// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusai/nexus-tui/internal/export"
	"github.com/nexusai/nexus-tui/internal/model"
)

// =============================================================================
// EXPORT
// =============================================================================

func newExportCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Write a chat to a Markdown or JSON file",
		Example: `  nexus export 3f2a --format json --output ./exports
  nexus export 3f2a --output - | less`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exp, err := export.ForFormat(format, export.DefaultOptions())
			if err != nil {
				return usageErrorf("%v", err)
			}
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if _, err := app.requireLogin(ctx); err != nil {
					return err
				}
				sess, err := loadSession(ctx, app, args[0])
				if err != nil {
					return err
				}

				t := export.NewTranscript(sess, app.Ctrl.View().Messages, time.Now())
				dir := output
				if dir == "" {
					dir = app.Config.UI.ExportDir
				}
				if dir == "" {
					dir = "."
				}
				if dir == "-" {
					data, err := exp.Export(t)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path, err := export.WriteFile(t, exp, dir)
				if errors.Is(err, export.ErrEmptyTranscript) {
					return fmt.Errorf("chat %s has no messages to export", sess.ID)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format (md or json)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "directory to write to, or - for stdout (default ui.export_dir)")
	return cmd
}

// loadSession opens id in the timeline and returns its list entry.
func loadSession(ctx context.Context, app *App, id string) (model.Session, error) {
	if err := app.Ctrl.LoadSessions(ctx); err != nil {
		return model.Session{}, err
	}
	if err := app.Ctrl.SwitchSession(ctx, id); err != nil {
		return model.Session{}, fmt.Errorf("open session %s: %w", id, err)
	}
	for _, s := range app.Ctrl.View().Sessions {
		if s.ID == id {
			return s, nil
		}
	}
	return model.Session{ID: id}, nil
}
