package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tracktap/internal/config"
	"tracktap/internal/daemonrun"
	"tracktap/internal/history"
	"tracktap/internal/preflight"
	"tracktap/internal/session"
)

type statusReport struct {
	ConfigPath string             `json:"config_path"`
	DaemonPID  int                `json:"daemon_pid,omitempty"`
	PanelURL   string             `json:"panel_url,omitempty"`
	LockHeld   bool               `json:"capture_lock_held"`
	Session    *session.Snapshot  `json:"session,omitempty"`
	LastRun    *history.Run       `json:"last_run,omitempty"`
	Spotify    bool               `json:"spotify_credentials"`
	Deps       []preflight.Result `json:"dependencies"`
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show capture, daemon, and dependency status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := collectStatus(cmd.Context(), cfg, ctx.configPath)
			if jsonOut {
				return writeJSON(cmd, report)
			}
			printStatus(cmd, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	return cmd
}

func collectStatus(ctx context.Context, cfg *config.Config, configPath string) statusReport {
	report := statusReport{
		ConfigPath: configPath,
		DaemonPID:  daemonrun.ReadPID(cfg.Paths.StateDir),
		Spotify:    cfg.HasSpotifyCredentials(),
	}
	report.LockHeld, _ = session.LockHeld(cfg.LockPath())

	if report.DaemonPID != 0 && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		base := panelURL(cfg.Paths.APIBind)
		report.PanelURL = base
		if snap, err := fetchPanelStatus(ctx, base, cfg.Paths.APIToken); err == nil {
			report.Session = &snap
		}
	}

	if store, err := history.Open(cfg.HistoryPath()); err == nil {
		if runs, err := store.ListRuns(ctx, 1); err == nil && len(runs) == 1 {
			report.LastRun = &runs[0]
		}
		_ = store.Close()
	}

	report.Deps = preflight.DependencyResults(ctx, cfg)
	return report
}

func printStatus(cmd *cobra.Command, report statusReport) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := renderSectionHeader("Capture", colorize)

	switch {
	case report.Session != nil && report.Session.Running:
		s := report.Session
		msg := fmt.Sprintf("%s %d/%d", s.Title, s.Current, s.Total)
		if s.Track != nil {
			msg += " - " + s.Track.Title
		}
		lines = append(lines, renderStatusLine("Session", statusWarn, msg, colorize))
	case report.LockHeld:
		lines = append(lines, renderStatusLine("Session", statusWarn, "capture in progress", colorize))
	default:
		lines = append(lines, renderStatusLine("Session", statusOK, "idle", colorize))
	}
	if report.DaemonPID != 0 {
		msg := fmt.Sprintf("running (pid %d)", report.DaemonPID)
		if report.PanelURL != "" {
			msg += ", panel " + report.PanelURL
		}
		lines = append(lines, renderStatusLine("Daemon", statusOK, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "not running", colorize))
	}
	if r := report.LastRun; r != nil {
		kind := statusOK
		if r.Errors > 0 || r.Error != "" {
			kind = statusWarn
		}
		msg := fmt.Sprintf("%s, %s (%d ok, %d skipped, %d failed) at %s",
			r.Title, runState(*r), r.OK, r.Skipped, r.Errors, formatTime(r.Started))
		lines = append(lines, renderStatusLine("Last run", kind, msg, colorize))
	} else {
		lines = append(lines, renderStatusLine("Last run", statusInfo, "none recorded", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Dependencies", colorize)...)
	for _, dep := range report.Deps {
		lines = append(lines, renderResultLine(dep, colorize))
	}
	if report.Spotify {
		lines = append(lines, renderStatusLine("Spotify", statusOK, "credentials configured", colorize))
	} else {
		lines = append(lines, renderStatusLine("Spotify", statusWarn, "no credentials; only --manual captures will run", colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderStatusLine("Config", statusInfo, report.ConfigPath, colorize))
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

// panelURL turns a listen address into a loopback URL the CLI can reach.
func panelURL(bind string) string {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return "http://" + bind
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

func fetchPanelStatus(ctx context.Context, base, token string) (session.Snapshot, error) {
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, base+"/api/status", nil)
	if err != nil {
		return session.Snapshot{}, err
	}
	if token = strings.TrimSpace(token); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return session.Snapshot{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return session.Snapshot{}, fmt.Errorf("panel status: %s", resp.Status)
	}
	var snap session.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("decode panel status: %w", err)
	}
	return snap, nil
}
