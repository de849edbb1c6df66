package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"docflow/internal/analyzers"
	"docflow/internal/config"
	"docflow/internal/daemon"
	"docflow/internal/events"
	"docflow/internal/pipeline"
	"docflow/internal/testsupport"
)

type cliTestEnv struct {
	cfg    *config.Config
	daemon *daemon.Daemon
	addr   string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	hub := events.NewHub(cfg.Events.SubscriberBuffer)
	driver := pipeline.NewDriver(cfg, store, hub, analyzers.New(cfg), nil)

	d, err := daemon.New(cfg, store, nil, driver, hub)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	return &cliTestEnv{cfg: cfg, daemon: d, addr: d.Addr()}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{"--api", env.addr, "--owner", "cli-owner"}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
