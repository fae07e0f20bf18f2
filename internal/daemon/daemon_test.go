package daemon_test

import (
	"context"
	"testing"

	"platter/internal/daemon"
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

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})

	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if !status.Workflow.Running {
		t.Fatal("expected workflow to report running")
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon stopped")
	}
}

func TestDaemonEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	first := workflow.NewManager(cfg, store, logging.NewNop())
	first.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})
	d1, err := daemon.New(cfg, store, logging.NewNop(), first)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d1.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d1.Stop)

	second := workflow.NewManager(cfg, store, logging.NewNop())
	second.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})
	d2, err := daemon.New(cfg, store, logging.NewNop(), second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d2.Start(context.Background()); err == nil {
		d2.Stop()
		t.Fatal("expected second daemon instance to fail to start")
	}
}

func TestDaemonTestNotificationWithoutTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	sent, message, err := d.TestNotification(context.Background())
	if err != nil {
		t.Fatalf("TestNotification: %v", err)
	}
	if sent {
		t.Fatal("expected no notification without a topic")
	}
	if message != "ntfy topic not configured" {
		t.Fatalf("unexpected message %q", message)
	}
}

func TestDaemonQueueOperations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	mgr.ConfigureStages(workflow.StageSet{Identifier: &stubStage{name: "identifier"}})
	d, err := daemon.New(cfg, store, logging.NewNop(), mgr)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx := context.Background()
	item, err := store.NewDisc(ctx, "/dev/sr0", "Disc", "fp-queue-ops")
	if err != nil {
		t.Fatalf("NewDisc: %v", err)
	}
	item.SetFailed("boom")
	if err := store.Update(ctx, item); err != nil {
		t.Fatalf("Update: %v", err)
	}

	retried, err := d.RetryFailed(ctx, nil)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected one retried item, got %d", retried)
	}

	items, err := d.ListQueue(ctx, []queue.Status{queue.StatusPending})
	if err != nil {
		t.Fatalf("ListQueue: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one pending item, got %d", len(items))
	}

	cleared, err := d.ClearQueue(ctx)
	if err != nil {
		t.Fatalf("ClearQueue: %v", err)
	}
	if cleared != 1 {
		t.Fatalf("expected one cleared item, got %d", cleared)
	}
}
