package scheduler

import (
	"context"
	"testing"
)

func TestWorkerRunNilWorker(t *testing.T) {
	var w *Worker

	// A deployment without Redis skips the worker; Run must still be safe
	// to call and report no error.
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("nil worker Run returned error: %v", err)
	}
}

func TestWorkerRunUnconfiguredServer(t *testing.T) {
	w := &Worker{}
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("unconfigured worker Run returned error: %v", err)
	}
}
