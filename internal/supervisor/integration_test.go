package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"
)

// TestSupervisorTreeIntegration tests the complete supervisor tree behavior
// with multiple services across all layers, simulating a real application.
func TestSupervisorTreeIntegration(t *testing.T) {
	t.Run("full tree with services in all layers", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, err := NewSupervisorTree(logger, TreeConfig{
			FailureThreshold: 5,
			FailureBackoff:   50 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}

		gpstcpSvc := NewMockService("gpstcp-server")
		writerSvc := NewMockService("live-points-writer")
		fanoutSvc := NewMockService("race-hub")
		maintSvc := NewMockService("dlq-reaper")

		tree.AddIngestService(gpstcpSvc)
		tree.AddWriterService(writerSvc)
		tree.AddFanoutService(fanoutSvc)
		tree.AddMaintenanceService(maintSvc)

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		var allStarted bool
		for i := 0; i < 10; i++ {
			time.Sleep(20 * time.Millisecond)
			if gpstcpSvc.StartCount() >= 1 && writerSvc.StartCount() >= 1 &&
				fanoutSvc.StartCount() >= 1 && maintSvc.StartCount() >= 1 {
				allStarted = true
				break
			}
		}

		if !allStarted {
			if gpstcpSvc.StartCount() < 1 {
				t.Error("ingest service was not started")
			}
			if writerSvc.StartCount() < 1 {
				t.Error("writer service was not started")
			}
			if fanoutSvc.StartCount() < 1 {
				t.Error("fanout service was not started")
			}
			if maintSvc.StartCount() < 1 {
				t.Error("maintenance service was not started")
			}
		}

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})

	t.Run("cascade failure isolation", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewSupervisorTree(logger, TreeConfig{
			FailureThreshold: 10,
			FailureBackoff:   10 * time.Millisecond,
			ShutdownTimeout:  500 * time.Millisecond,
		})

		failingSvc := NewMockService("failing-fanout-hub")
		failingSvc.SetFailCount(3)

		stableIngest := NewMockService("stable-gpstcp")
		stableWriter := NewMockService("stable-writer")

		tree.AddIngestService(stableIngest)
		tree.AddFanoutService(failingSvc)
		tree.AddWriterService(stableWriter)

		ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		time.Sleep(150 * time.Millisecond)

		if failingSvc.StartCount() < 3 {
			t.Errorf("failing service should have been restarted at least 3 times, got %d", failingSvc.StartCount())
		}
		if stableIngest.StartCount() < 1 {
			t.Error("stable ingest service should have started")
		}
		if stableWriter.StartCount() < 1 {
			t.Error("stable writer service should have started")
		}

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestSupervisorTreeConcurrency tests concurrent operations on the supervisor tree.
func TestSupervisorTreeConcurrency(t *testing.T) {
	t.Run("concurrent service additions are safe", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewSupervisorTree(logger, TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		done := make(chan struct{})
		for i := 0; i < 10; i++ {
			go func(idx int) {
				svc := NewMockService("concurrent-svc")
				switch idx % 4 {
				case 0:
					tree.AddIngestService(svc)
				case 1:
					tree.AddWriterService(svc)
				case 2:
					tree.AddFanoutService(svc)
				case 3:
					tree.AddMaintenanceService(svc)
				}
			}(i)
		}

		time.Sleep(100 * time.Millisecond)
		close(done)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case <-errCh:
		case <-time.After(2 * time.Second):
			t.Error("tree did not shut down")
		}
	})
}

// TestSupervisorTreeEdgeCases tests edge cases and error conditions.
func TestSupervisorTreeEdgeCases(t *testing.T) {
	t.Run("empty tree starts and stops gracefully", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewSupervisorTree(logger, TreeConfig{
			ShutdownTimeout: 500 * time.Millisecond,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		errCh := tree.ServeBackground(ctx)

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.DeadlineExceeded) {
				t.Errorf("unexpected error: %v", err)
			}
		case <-time.After(500 * time.Millisecond):
			t.Error("tree did not shut down")
		}
	})

	t.Run("root accessor returns non-nil", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

		tree, _ := NewSupervisorTree(logger, TreeConfig{})

		if tree.Root() == nil {
			t.Error("Root() should return non-nil supervisor")
		}
	})
}
