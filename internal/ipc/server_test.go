package ipc_test

import (
	"context"
	"testing"
	"time"

	"platter/internal/config"
	"platter/internal/daemon"
	"platter/internal/ipc"
	"platter/internal/logging"
	"platter/internal/queue"
	"platter/internal/stage"
	"platter/internal/testsupport"
	"platter/internal/workflow"
)

type stubStage struct {
	name string
}

func (s *stubStage) Prepare(context.Context, *queue.Item) error { return nil }

func (s *stubStage) Execute(context.Context, *queue.Item) error { return nil }

func (s *stubStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(s.name) }

type harness struct {
	cfg    *config.Config
	store  *queue.Store
	daemon *daemon.Daemon
	client *ipc.Client
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})

	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	server, err := ipc.NewServer(cfg, d, logging.NewNop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := server.Start(ctx); err != nil {
		t.Fatalf("server.Start: %v", err)
	}
	t.Cleanup(server.Stop)

	client, err := ipc.NewClient(cfg.Paths.SocketPath)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	return &harness{cfg: cfg, store: store, daemon: d, client: client}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServerReportsStatus(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	status, err := h.client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Running {
		t.Fatal("expected daemon running")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow running")
	}
	if status.QueueDBPath == "" {
		t.Fatal("expected queue database path in status")
	}
}

func TestServerListsQueueWithStatusFilter(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	pending, err := h.store.NewDisc(ctx, "/dev/sr0", "Pending Disc", "fp-ipc-pending")
	if err != nil {
		t.Fatalf("NewDisc: %v", err)
	}
	failed, err := h.store.NewDisc(ctx, "/dev/sr0", "Failed Disc", "fp-ipc-failed")
	if err != nil {
		t.Fatalf("NewDisc: %v", err)
	}
	failed.SetFailed("rip aborted")
	if err := h.store.Update(ctx, failed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	all, err := h.client.QueueList(ctx)
	if err != nil {
		t.Fatalf("QueueList: %v", err)
	}
	if len(all.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(all.Items))
	}
	seen := map[int64]bool{}
	for _, payload := range all.Items {
		seen[payload.ID] = true
	}
	if !seen[pending.ID] || !seen[failed.ID] {
		t.Fatalf("expected both items in listing, got %v", seen)
	}

	onlyFailed, err := h.client.QueueList(ctx, "failed")
	if err != nil {
		t.Fatalf("QueueList failed: %v", err)
	}
	if len(onlyFailed.Items) != 1 {
		t.Fatalf("expected 1 failed item, got %d", len(onlyFailed.Items))
	}
	if onlyFailed.Items[0].ID != failed.ID {
		t.Fatalf("expected item %d, got %d", failed.ID, onlyFailed.Items[0].ID)
	}
	if onlyFailed.Items[0].ErrorMessage != "rip aborted" {
		t.Fatalf("unexpected error message %q", onlyFailed.Items[0].ErrorMessage)
	}

	if _, err := h.client.QueueList(ctx, "bogus"); err == nil {
		t.Fatal("expected error for unknown status filter")
	}
}

func TestServerRetriesAndClearsQueue(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	item, err := h.store.NewDisc(ctx, "/dev/sr0", "Disc", "fp-ipc-retry")
	if err != nil {
		t.Fatalf("NewDisc: %v", err)
	}
	item.SetFailed("boom")
	if err := h.store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := h.client.QueueRetry(ctx, nil)
	if err != nil {
		t.Fatalf("QueueRetry: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried item, got %d", retried)
	}

	refreshed, err := h.store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if refreshed.Status != queue.StatusPending {
		t.Fatalf("expected pending after retry, got %s", refreshed.Status)
	}

	cleared, err := h.client.QueueClear(ctx, "all")
	if err != nil {
		t.Fatalf("QueueClear: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected 1 cleared item, got %d", cleared)
	}

	if _, err := h.client.QueueClear(ctx, "everything"); err == nil {
		t.Fatal("expected error for unknown clear scope")
	}
}

func TestServerReportsHealth(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	if _, err := h.store.NewDisc(ctx, "/dev/sr0", "Disc", "fp-ipc-health"); err != nil {
		t.Fatalf("NewDisc: %v", err)
	}

	health, err := h.client.Health(ctx)
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if health.Total != 1 || health.Pending != 1 {
		t.Fatalf("unexpected counts: total=%d pending=%d", health.Total, health.Pending)
	}
	if len(health.Stages) != 1 || health.Stages[0].Name != "identifier" {
		t.Fatalf("unexpected stage health: %+v", health.Stages)
	}
	if !health.Stages[0].Ready {
		t.Fatal("expected identifier stage ready")
	}
	if health.Database == nil {
		t.Fatal("expected database diagnostics in health response")
	}
	if !health.Database.Exists || !health.Database.Readable {
		t.Fatalf("unexpected database health: %+v", health.Database)
	}
}

func TestServerTestNotifyWithoutTopic(t *testing.T) {
	h := newHarness(t)
	ctx := testContext(t)

	result, err := h.client.TestNotify(ctx)
	if err != nil {
		t.Fatalf("TestNotify: %v", err)
	}
	if result.Sent {
		t.Fatal("expected no notification without a topic")
	}
	if result.Message != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", result.Message)
	}
}

func TestNewClientRequiresSocketPath(t *testing.T) {
	if _, err := ipc.NewClient("  "); err == nil {
		t.Fatal("expected error for empty socket path")
	}
}
