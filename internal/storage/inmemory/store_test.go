package inmemory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/dvloznov/finance-migrator/internal/storage"
)

func TestPutGetRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.Put(ctx, "UserData", []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := store.Get(ctx, "UserData")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != `{"id":"u1"}` {
		t.Errorf("Get = %q, want %q", got, `{"id":"u1"}`)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := NewStore()

	_, err := store.Get(context.Background(), "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.Put(ctx, "k", []byte("original")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	first, _ := store.Get(ctx, "k")
	first[0] = 'X'

	second, _ := store.Get(ctx, "k")
	if string(second) != "original" {
		t.Errorf("stored value mutated through returned slice: %q", second)
	}
}

func TestDeleteAndExists(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	if err := store.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	exists, err := store.Exists(ctx, "k")
	if err != nil || !exists {
		t.Fatalf("Exists = %v, %v, want true, nil", exists, err)
	}

	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, _ = store.Exists(ctx, "k")
	if exists {
		t.Error("Exists = true after Delete")
	}

	// Deleting a missing key is a no-op
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key returned error: %v", err)
	}
}

func TestKeysWithPrefix(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, k := range []string{"UserProfile_a", "UserProfile_b", "UserData"} {
		if err := store.Put(ctx, k, []byte("v")); err != nil {
			t.Fatalf("Put %q failed: %v", k, err)
		}
	}

	keys, err := store.Keys(ctx, "UserProfile_")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	want := []string{"UserProfile_a", "UserProfile_b"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("Keys = %v, want %v", keys, want)
	}

	all, err := store.Keys(ctx, "")
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Keys(\"\") returned %d keys, want 3", len(all))
	}
}
