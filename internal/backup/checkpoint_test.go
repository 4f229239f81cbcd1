package backup

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestCheckpointRoundtrip(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	payload := []byte(`{"stage":"transform","tx_count":3}`)
	id, err := m.CreateCheckpoint(ctx, "pre-transform", payload)
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}

	restored, err := m.RollbackToCheckpoint(ctx, id)
	if err != nil {
		t.Fatalf("RollbackToCheckpoint failed: %v", err)
	}
	if string(restored) != string(payload) {
		t.Errorf("restored payload = %q, want %q", restored, payload)
	}
}

func TestCheckpointRequiresName(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.CreateCheckpoint(context.Background(), "", []byte("p"))
	if err == nil {
		t.Error("CreateCheckpoint with empty name should fail")
	}
}

func TestCheckpointTamperDetection(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, nil)

	id, err := m.CreateCheckpoint(ctx, "pre-persist", []byte("payload"))
	if err != nil {
		t.Fatalf("CreateCheckpoint failed: %v", err)
	}

	// Rewrite the payload on disk without updating the stored hash.
	path := filepath.Join(m.cfg.CheckpointDir, id+checkpointExt)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading checkpoint file: %v", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		t.Fatalf("decoding checkpoint file: %v", err)
	}
	cp.Payload = []byte("tampered payload")
	tampered, _ := json.Marshal(&cp)
	if err := os.WriteFile(path, tampered, 0o644); err != nil {
		t.Fatalf("tampering failed: %v", err)
	}

	_, err = m.RollbackToCheckpoint(ctx, id)
	var cerr *CheckpointCorruptedError
	if !errors.As(err, &cerr) {
		t.Fatalf("RollbackToCheckpoint error = %v, want CheckpointCorruptedError", err)
	}
	if cerr.Name != "pre-persist" {
		t.Errorf("corrupted checkpoint name = %q, want %q", cerr.Name, "pre-persist")
	}
}

func TestCheckpointEviction(t *testing.T) {
	ctx := context.Background()

	cfg := DefaultConfig(t.TempDir())
	cfg.MaxCheckpoints = 2
	m, err := NewManager(cfg, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	var ids []string
	for i, name := range []string{"first", "second", "third"} {
		// Distinct timestamps so eviction order is deterministic.
		time.Sleep(2 * time.Millisecond)
		id, err := m.CreateCheckpoint(ctx, name, []byte(name))
		if err != nil {
			t.Fatalf("CreateCheckpoint %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	cps, err := m.ListCheckpoints(ctx)
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("ListCheckpoints returned %d checkpoints, want 2", len(cps))
	}
	for _, cp := range cps {
		if cp.ID == ids[0] {
			t.Error("oldest checkpoint was not evicted")
		}
	}

	if _, err := m.RollbackToCheckpoint(ctx, ids[0]); err == nil {
		t.Error("expected error restoring evicted checkpoint")
	}
}
