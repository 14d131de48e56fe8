// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/model"
	"github.com/nexusai/nexus-tui/internal/timeline"
	"github.com/nexusai/nexus-tui/internal/util"
)

// =============================================================================
// AUTH COMMANDS
// =============================================================================

func newLoginCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Sign in with the demo login",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				email := app.Config.Auth.DemoEmail
				if len(args) == 1 {
					email = args[0]
				}
				display := name
				if display == "" {
					display = app.Config.Auth.DemoName
				}
				user, err := app.Ctrl.Login(ctx, email, display)
				if err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", user.DisplayName, user.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name (default auth.demo_name)")
	return cmd
}

func newLogoutCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored login",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, info, func(_ context.Context, app *App) error {
				if err := app.Auth.Restore(); err != nil {
					app.Log.WithError(err).Warn("failed to read stored token")
				}
				app.Ctrl.Logout()
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
				return nil
			})
		},
	}
}

type whoamiPayload struct {
	User      model.User `json:"user"`
	Subject   string     `json:"subject,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func newWhoamiCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				user, err := app.requireLogin(ctx)
				if err != nil {
					return err
				}
				payload := whoamiPayload{User: user}
				if claims, err := app.Auth.Claims(); err == nil {
					payload.Subject = claims.Subject
				}
				if exp := app.Auth.ExpiresAt(); !exp.IsZero() {
					payload.ExpiresAt = &exp
				}
				if flags.jsonOut {
					return NewJSONResponse("whoami", payload).Write(cmd.OutOrStdout())
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s <%s>\n", user.DisplayName, user.Email)
				if payload.ExpiresAt != nil {
					fmt.Fprintf(out, "Signed in until %s\n", payload.ExpiresAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
	addJSONFlag(cmd, flags)
	return cmd
}

// =============================================================================
// SESSIONS
// =============================================================================

// sessionTitleRunes caps the TITLE column so long first prompts keep the
// table readable.
const sessionTitleRunes = 48

func newSessionsCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"ls"},
		Short:   "List chats, most recent first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if _, err := app.requireLogin(ctx); err != nil {
					return err
				}
				if err := app.Ctrl.LoadSessions(ctx); err != nil {
					return err
				}
				sessions := app.Ctrl.View().Sessions
				if flags.jsonOut {
					return NewJSONResponse("sessions", sessions).Write(cmd.OutOrStdout())
				}
				if len(sessions) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No chats yet")
					return nil
				}
				now := time.Now()
				rows := make([][]string, 0, len(sessions))
				for _, s := range sessions {
					title := util.TruncateRunes(util.FirstLine(s.DisplayTitle()), sessionTitleRunes)
					rows = append(rows, []string{s.ID, title, util.FormatAge(s.UpdatedAt.Time, now)})
				}
				return writeTable(cmd.OutOrStdout(), []string{"ID", "TITLE", "UPDATED"}, rows)
			})
		},
	}
	addJSONFlag(cmd, flags)

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if _, err := app.requireLogin(ctx); err != nil {
					return err
				}
				if err := app.Ctrl.DeleteSession(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

// =============================================================================
// MODELS
// =============================================================================

type modelsPayload struct {
	Models   []model.ModelInfo `json:"models"`
	Default  string            `json:"default"`
	Fallback bool              `json:"fallback"`
}

func newModelsCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models the backend offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if err := app.Ctrl.LoadCatalog(ctx); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v; showing the built-in list\n", err)
				}
				v := app.Ctrl.View()
				if flags.jsonOut {
					payload := modelsPayload{Models: v.Models, Default: v.SelectedModel, Fallback: v.FallbackModels}
					return NewJSONResponse("models", payload).Write(cmd.OutOrStdout())
				}
				rows := make([][]string, 0, len(v.Models))
				for _, m := range v.Models {
					id := m.ID
					if id == v.SelectedModel {
						id += " *"
					}
					rows = append(rows, []string{id, m.DisplayName(), m.CapabilitiesString()})
				}
				return writeTable(cmd.OutOrStdout(), []string{"ID", "NAME", "INPUT"}, rows)
			})
		},
	}
	addJSONFlag(cmd, flags)
	return cmd
}

// =============================================================================
// ASK
// =============================================================================

type askPayload struct {
	SessionID string        `json:"session_id"`
	User      model.Message `json:"user"`
	Assistant model.Message `json:"assistant"`
}

func newAskCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	var sessionID, modelID, imagePath, docPath string
	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Send one message and print the reply",
		Long: `Send one message and print the reply. Without --session a new chat is
started. Attachments follow the same rules as in the UI.`,
		Example: `  nexus ask "What is a goroutine?"
  nexus ask --model gpt-4o --image ./diagram.png "Explain this"
  nexus ask --doc report.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if _, err := app.requireLogin(ctx); err != nil {
					return err
				}
				if sessionID != "" {
					if err := app.Ctrl.SwitchSession(ctx, sessionID); err != nil {
						return fmt.Errorf("open session %s: %w", sessionID, err)
					}
				}
				if modelID != "" {
					if err := app.Ctrl.SetModel(modelID); err != nil {
						return usageErrorf("%v", err)
					}
				}
				if imagePath != "" {
					if err := attachFile(imagePath, func(name string, f *os.File) error {
						_, err := app.Ctrl.AttachImage(name, f)
						return err
					}); err != nil {
						return err
					}
				}
				if docPath != "" {
					if err := attachFile(docPath, func(name string, f *os.File) error {
						_, err := app.Ctrl.AttachDocument(ctx, name, f)
						return err
					}); err != nil {
						return err
					}
				}

				res, err := app.Ctrl.Submit(ctx, text)
				switch {
				case errors.Is(err, conversation.ErrEmptySubmit):
					return usageErrorf("nothing to send: give some text, --image or --doc")
				case errors.Is(err, timeline.ErrSendFailed):
					return fmt.Errorf("%s: %w", model.SendFailureText, err)
				case err != nil:
					return err
				}

				if flags.jsonOut {
					payload := askPayload{SessionID: res.SessionID, User: res.User, Assistant: res.Assistant}
					return NewJSONResponse("ask", payload).Write(cmd.OutOrStdout())
				}
				fmt.Fprintln(cmd.OutOrStdout(), res.Assistant.Content)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&sessionID, "session", "s", "", "continue an existing chat")
	f.StringVarP(&modelID, "model", "m", "", "model id (default chat.default_model)")
	f.StringVar(&imagePath, "image", "", "attach an image")
	f.StringVar(&docPath, "doc", "", "attach a document (.pdf, .docx, .txt)")
	addJSONFlag(cmd, flags)
	return cmd
}

func attachFile(path string, fn func(name string, f *os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := fn(filepath.Base(path), f); err != nil {
		return fmt.Errorf("attach %s: %w", path, err)
	}
	return nil
}

// =============================================================================
// MEMORIES
// =============================================================================

func newMemoriesCommand(flags *globalFlags, info BuildInfo) *cobra.Command {
	var wipe bool
	cmd := &cobra.Command{
		Use:   "memories",
		Short: "List, or clear, what the assistant remembers about you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, info, func(ctx context.Context, app *App) error {
				if _, err := app.requireLogin(ctx); err != nil {
					return err
				}
				if wipe {
					if err := app.Ctrl.ClearMemories(ctx); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), "Memories cleared")
					return nil
				}
				mems, err := app.Ctrl.Memories(ctx)
				if err != nil {
					return err
				}
				if flags.jsonOut {
					return NewJSONResponse("memories", mems).Write(cmd.OutOrStdout())
				}
				if len(mems) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No memories stored")
					return nil
				}
				rows := make([][]string, 0, len(mems))
				for _, m := range mems {
					rows = append(rows, []string{m.Key, m.Value, m.Category})
				}
				return writeTable(cmd.OutOrStdout(), []string{"KEY", "VALUE", "CATEGORY"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete all memories")
	addJSONFlag(cmd, flags)
	return cmd
}

func addJSONFlag(cmd *cobra.Command, flags *globalFlags) {
	cmd.Flags().BoolVar(&flags.jsonOut, "json", false, "print JSON")
}
