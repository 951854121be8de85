package store

import (
	"context"
	"fmt"
	"sort"
	"testing"
)

// exerciseStoreContract checks the behaviour every NoteStore backend must share.
func exerciseStoreContract(t *testing.T, noteStore NoteStore) {
	t.Helper()
	ctx := context.Background()

	if _, found, err := noteStore.Get(ctx, "note:absent"); err != nil || found {
		t.Fatalf("expected absent key, found=%v err=%v", found, err)
	}

	if err := noteStore.Put(ctx, "note:a", []byte(`{"v":1}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := noteStore.Put(ctx, "note:a", []byte(`{"v":2}`)); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	value, found, err := noteStore.Get(ctx, "note:a")
	if err != nil || !found {
		t.Fatalf("expected stored value, found=%v err=%v", found, err)
	}
	if string(value) != `{"v":2}` {
		t.Fatalf("expected last write to win, got %s", value)
	}

	if err := noteStore.Delete(ctx, "note:a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := noteStore.Delete(ctx, "note:a"); err != nil {
		t.Fatalf("deleting an absent key must not fail: %v", err)
	}
	if _, found, _ := noteStore.Get(ctx, "note:a"); found {
		t.Fatalf("expected key to be gone after delete")
	}

	if err := noteStore.Put(ctx, "", []byte("x")); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

// exerciseStorePagination checks that paging through a prefix visits every key once.
func exerciseStorePagination(t *testing.T, noteStore NoteStore) {
	t.Helper()
	ctx := context.Background()

	for index := 0; index < 7; index++ {
		if err := noteStore.Put(ctx, fmt.Sprintf("note:%02d", index), []byte("{}")); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := noteStore.Put(ctx, "other:1", []byte("{}")); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	seen := map[string]struct{}{}
	cursor := ""
	for pages := 0; pages < 20; pages++ {
		page, err := noteStore.List(ctx, ListOptions{Prefix: "note:", Cursor: cursor, Limit: 3})
		if err != nil {
			t.Fatalf("list failed: %v", err)
		}
		for _, key := range page.Keys {
			seen[key] = struct{}{}
		}
		if page.Complete {
			break
		}
		cursor = page.Cursor
	}

	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) != 7 {
		t.Fatalf("expected 7 note keys, got %v", keys)
	}
	if keys[0] != "note:00" || keys[6] != "note:06" {
		t.Fatalf("unexpected keys %v", keys)
	}
}
