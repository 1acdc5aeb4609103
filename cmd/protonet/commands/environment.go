// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/bureau-foundation/protoclient/cmd/protonet/cli"
	"github.com/bureau-foundation/protoclient/lib/config"
	"github.com/bureau-foundation/protoclient/lib/sealed"
	"github.com/bureau-foundation/protoclient/messaging"
)

// ErrSessionExpired is returned when the box rejects the stored token.
// The session file has been removed by then.
var ErrSessionExpired = errors.New(`session expired or revoked, run "protonet login" again`)

var errNoBaseURL = cli.Usage("no box URL: pass --url or set base_url in the config")

// Writers used by command output. Tests replace them.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Global holds the flags every command accepts.
type Global struct {
	ConfigFile string `flag:"config" desc:"config file (default: $PROTONET_CONFIG)"`
	Box        string `flag:"box" desc:"named box from the config file"`
	BaseURL    string `flag:"url" desc:"Protonet box URL (overrides config and saved session)"`
	Verbose    bool   `flag:"verbose,v" desc:"log at debug level"`
}

func (g *Global) loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.ConfigFile != "" {
		cfg, err = config.LoadFile(g.ConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if g.Box != "" {
		if err := cfg.SelectBox(g.Box); err != nil {
			return nil, cli.Usage("%v", err)
		}
	}
	if g.BaseURL != "" {
		cfg.BaseURL = g.BaseURL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// environment is what a command runs against: the loaded config, a
// client and the stored session, if any.
type environment struct {
	config      *config.Config
	logger      *slog.Logger
	client      *messaging.Client
	sessionPath string
	session     *cli.StoredSession

	ctx        context.Context
	stopSignal func()
	stopEvents func()
	watchers   sync.WaitGroup
}

// open loads the config and creates an anonymous client. The base URL
// comes from --url, then the config, then the stored session.
func (g *Global) open() (*environment, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}

	level, _ := cfg.Level()
	if g.Verbose {
		level = slog.LevelDebug
	}
	logger := cli.NewCommandLogger(level)

	env := &environment{
		config:      cfg,
		logger:      logger,
		sessionPath: cli.SessionFilePath(cfg.SessionFile),
	}

	stored, err := cli.LoadSessionFrom(env.sessionPath)
	switch {
	case err == nil:
		env.session = stored
	case errors.Is(err, cli.ErrNoSession):
	default:
		return nil, err
	}

	baseURL := cfg.BaseURL
	if baseURL == "" && env.session != nil {
		baseURL = env.session.BaseURL
	}
	if baseURL == "" {
		return nil, errNoBaseURL
	}

	timeout, _ := cfg.Timeout()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	client, err := messaging.NewClient(messaging.ClientConfig{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Transport: transport},
		Logger:     logger,
	})
	if err != nil {
		return nil, cli.Usage("%v", err)
	}
	env.client = client
	env.ctx = context.Background()
	env.watchSignals()
	env.watchEvents()
	return env, nil
}

// openSession opens the environment and restores the stored session.
// A token the box refuses removes the session file and returns
// ErrSessionExpired.
func (g *Global) openSession() (*environment, error) {
	env, err := g.open()
	if err != nil {
		return nil, err
	}
	if env.session == nil {
		env.Close()
		return nil, cli.ErrNoSession
	}
	if env.session.BaseURL != env.client.BaseURL() {
		base := env.client.BaseURL()
		env.Close()
		return nil, fmt.Errorf("saved session belongs to %s, not %s; log in again", env.session.BaseURL, base)
	}

	keypair, err := sealed.LoadOrCreateIdentity(env.config.IdentityFile)
	if err != nil {
		env.Close()
		return nil, err
	}
	defer keypair.Close()

	token, err := env.session.OpenToken(keypair)
	if err != nil {
		env.Close()
		return nil, err
	}
	defer token.Close()

	ok, err := env.client.LoginWithToken(env.ctx, token.String())
	if err != nil {
		env.Close()
		return nil, err
	}
	if !ok || !env.client.Authenticated() {
		env.Close()
		return nil, ErrSessionExpired
	}
	return env, nil
}

// watchSignals cancels every request in flight on SIGINT or SIGTERM.
func (e *environment) watchSignals() {
	signals := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	e.watchers.Add(1)
	go func() {
		defer e.watchers.Done()
		for {
			select {
			case received := <-signals:
				e.logger.Info("interrupted, cancelling requests", "signal", received.String())
				e.client.CancelAll()
			case <-done:
				return
			}
		}
	}()
	e.stopSignal = func() {
		signal.Stop(signals)
		close(done)
	}
}

// watchEvents removes the session file once the box rejects the token.
func (e *environment) watchEvents() {
	events, unsubscribe := e.client.Subscribe(8)
	e.stopEvents = unsubscribe
	persisted := e.session != nil

	e.watchers.Add(1)
	go func() {
		defer e.watchers.Done()
		for event := range events {
			e.logger.Debug("session event", "event", event.String())
			if event != messaging.EventAuthenticationFailed || !persisted {
				continue
			}
			if err := cli.RemoveSession(e.sessionPath); err != nil {
				e.logger.Warn("removing rejected session", "error", err)
				continue
			}
			e.logger.Warn("session rejected by the box, removed", "path", e.sessionPath)
		}
	}()
}

// expired reports a guarded call that came back empty: the box
// rejected the token and the client cleared the session.
func (e *environment) expired() error {
	e.logger.Debug("guarded call returned no result", "state", e.client.State().String())
	return ErrSessionExpired
}

// Close stops the signal and event watchers and waits for them.
func (e *environment) Close() {
	if e.stopSignal != nil {
		e.stopSignal()
	}
	if e.stopEvents != nil {
		e.stopEvents()
	}
	e.watchers.Wait()
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	var (
		usage *cli.UsageError
		exit  interface{ ExitCode() int }
	)
	switch {
	case err == nil:
		return 0
	case errors.As(err, &exit):
		return exit.ExitCode()
	case errors.As(err, &usage):
		return cli.ExitUsage
	case errors.Is(err, messaging.ErrCancelled):
		return cli.ExitCancelled
	case errors.Is(err, ErrSessionExpired), errors.Is(err, cli.ErrNoSession), errors.Is(err, messaging.ErrUnauthorized):
		return cli.ExitUnauthorized
	}
	return 1
}
