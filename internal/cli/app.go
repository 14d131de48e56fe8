// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/auth"
	"github.com/nexusai/nexus-tui/internal/backend"
	"github.com/nexusai/nexus-tui/internal/config"
	"github.com/nexusai/nexus-tui/internal/conversation"
	"github.com/nexusai/nexus-tui/internal/logging"
	"github.com/nexusai/nexus-tui/internal/model"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	backendURL string
	logLevel   string
	jsonOut    bool
}

// App is the client stack built for one invocation.
type App struct {
	Config     *config.Config
	ConfigPath string
	Log        *logrus.Logger
	Auth       *auth.Session
	Client     *backend.Client
	Ctrl       *conversation.Controller

	logCloser io.Closer
}

// newApp loads the configuration and wires logger, auth session, backend
// client and controller. logOut receives log output when no log file is
// configured.
func newApp(flags *globalFlags, version string, logOut io.Writer) (*App, error) {
	path := flags.configPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	if flags.backendURL != "" {
		cfg.Backend.URL = flags.backendURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageErrorf("invalid settings: %v", err)
	}

	log, closer, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Output: logOut,
	})
	if err != nil {
		return nil, err
	}

	authOpts := []auth.Option{auth.WithLogger(log.WithField("component", "auth"))}
	if cfg.Auth.TokenFile != "" {
		authOpts = append(authOpts, auth.WithStore(auth.NewFileStore(cfg.Auth.TokenFile)))
	}
	sess := auth.NewSession(authOpts...)

	client := backend.NewClient(cfg.Backend.URL, sess).
		WithTimeout(cfg.Backend.Timeout()).
		WithRateLimit(cfg.Backend.RequestsPerSecond, cfg.Backend.Burst).
		WithLogger(log.WithField("component", "backend")).
		WithUserAgent("nexus/" + version)

	ctrl := conversation.New(client, sess,
		conversation.WithLogger(log.WithField("component", "controller")),
		conversation.WithStarterPrompts(cfg.Chat.StarterPrompts),
		conversation.WithDefaultModel(cfg.Chat.DefaultModel),
		conversation.WithNewSessionTitle(cfg.Chat.NewSessionTitle),
	)

	log.WithFields(logrus.Fields{
		"backend": cfg.Backend.URL,
		"config":  path,
	}).Debug("client initialized")

	return &App{
		Config:     cfg,
		ConfigPath: path,
		Log:        log,
		Auth:       sess,
		Client:     client,
		Ctrl:       ctrl,
		logCloser:  closer,
	}, nil
}

// Close releases the controller and the log file.
func (a *App) Close() {
	a.Ctrl.Close()
	if err := a.logCloser.Close(); err != nil {
		a.Log.WithError(err).Debug("failed to close log file")
	}
}

// requireLogin resumes the stored login.
func (a *App) requireLogin(ctx context.Context) (model.User, error) {
	user, err := a.Ctrl.Restore(ctx)
	if errors.Is(err, conversation.ErrNotAuthenticated) {
		return model.User{}, ErrNotSignedIn
	}
	if err != nil {
		return model.User{}, fmt.Errorf("stored login rejected: %w", err)
	}
	return user, nil
}
