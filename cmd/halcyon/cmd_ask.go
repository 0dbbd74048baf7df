// Copyright (C) 2025 Halcyon AI (oss@halcyonai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/HalcyonAI/HalcyonFOSS/pkg/metrics"
	"github.com/HalcyonAI/HalcyonFOSS/pkg/session"
	"github.com/HalcyonAI/HalcyonFOSS/pkg/ux"
)

// renderInterval is how often the stream view refreshes from the latest
// folded state. 80ms tracks token arrival closely without burning CPU.
const renderInterval = 80 * time.Millisecond

// runAskCommand streams one question-answer turn to the terminal.
//
// # Description
//
// Builds a stream controller against the configured orchestrator, starts
// the turn, and polls the controller's state snapshots on a ticker to
// drive the incremental terminal view. Ctrl-C cancels the turn cleanly.
// The command's exit status reflects the turn outcome: success only when
// the turn completed with an answer.
func runAskCommand(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return errors.New("question must not be empty")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	var streamMetrics *metrics.StreamMetrics
	if addr := resolveMetricsAddr(); addr != "" {
		reg := prometheus.NewRegistry()
		streamMetrics = metrics.New(reg)
		startMetricsServer(g, gctx, addr, reg)
	}

	ctrl := session.NewController(session.Config{
		BaseURL:       config.Server.BaseURL,
		Metrics:       streamMetrics,
		WarnThreshold: EnforceDefaultTimeout(config.Stream.WarnAfter, session.DefaultWarnThreshold),
		HardTimeout: EnforceMinTimeout(
			EnforceDefaultTimeout(config.Stream.TimeoutAfter, session.DefaultHardTimeout),
			MinStreamTimeout),
	})
	ctrl.Callbacks().SetOnSessionID(func(id string) {
		logger.Debug("session established", "session_id", id)
	})
	ctrl.Callbacks().SetOnTimeoutWarning(func() {
		logger.Warn("turn exceeded the warn threshold", "query_len", len(query))
	})

	opts := session.Options{
		SessionID:    sessionID,
		Namespaces:   mergeNamespaces(),
		ResearchMode: researchMode || config.Stream.ResearchMode,
	}
	if err := ctrl.Start(ctx, query, "search", opts); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}

	view := ux.NewStreamView(os.Stdout)
	res := renderUntilDone(ctx, ctrl, view)
	view.Finalize(res)

	stop() // release the signal handler so the metrics server can drain
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("metrics listener error", "error", err)
	}

	return outcomeError(res)
}

// renderUntilDone polls the controller's snapshots until the turn
// reaches a terminal state, cancelling the turn if the context fires.
func renderUntilDone(ctx context.Context, ctrl *session.Controller, view *ux.StreamView) *session.Result {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ctrl.Cancel()
			<-ctrl.Done()
			return ctrl.Result()
		case <-ctrl.Done():
			return ctrl.Result()
		case <-ticker.C:
			view.Render(ctrl.Snapshot())
		}
	}
}

// outcomeError maps a turn result to the command's error value.
func outcomeError(res *session.Result) error {
	if res == nil {
		return errors.New("the turn produced no result")
	}
	switch res.Outcome {
	case session.TurnCompleted:
		return nil
	case session.TurnCancelled:
		return errors.New("interrupted")
	default:
		if res.Err != nil {
			return res.Err
		}
		return errors.New("the search failed")
	}
}

// resolveMetricsAddr prefers the flag over the config file.
func resolveMetricsAddr() string {
	if metricsAddr != "" {
		return metricsAddr
	}
	return config.Metrics.Addr
}

// startMetricsServer serves the registry on addr until gctx is done.
func startMetricsServer(g *errgroup.Group, gctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: MinHTTPTimeout,
	}

	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// mergeNamespaces combines configured and flag-provided namespaces,
// dropping duplicates while preserving order.
func mergeNamespaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, ns := range append(append([]string{}, config.Server.Namespaces...), namespaces...) {
		ns = strings.TrimSpace(ns)
		if ns == "" || seen[ns] {
			continue
		}
		seen[ns] = true
		out = append(out, ns)
	}
	return out
}
