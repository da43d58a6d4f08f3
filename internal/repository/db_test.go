package repository

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/db"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/util/compression"
)

func setupTestDB(t *testing.T) *db.SQLite {
	t.Helper()
	database := db.NewSQLite(filepath.Join(t.TempDir(), "drafts.db"))
	if err := database.InitDB(); err != nil {
		t.Fatalf("Failed to setup test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func stores(t *testing.T) map[string]DraftStore {
	t.Helper()
	return map[string]DraftStore{
		"memory": NewMemoryDraftStore(),
		"sqlite": NewDBDraftStore(setupTestDB(t), compression.ZstdCompressor{}),
	}
}

func snapshot(id, owner, content string) *Snapshot {
	return &Snapshot{
		ID:       id,
		Owner:    model.UserID(owner),
		Resource: "services",
		RecordID: "s1",
		Title:    "Cloud Migration",
		Content:  []byte(content),
	}
}

func TestDraftStoreSaveAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := snapshot("d1", "admin", `{"values":{"title":"Cloud Migration"}}`)
			changed, err := store.SaveDraft(s)
			if err != nil {
				t.Fatalf("SaveDraft: %v", err)
			}
			if !changed {
				t.Error("Expected first save to report a change")
			}
			if s.Hash == "" || s.ModifiedAt.IsZero() {
				t.Error("Expected hash and modification time to be set")
			}

			got, err := store.GetDraft("d1")
			if err != nil {
				t.Fatalf("GetDraft: %v", err)
			}
			if string(got.Content) != string(s.Content) {
				t.Errorf("Expected content %s, got %s", s.Content, got.Content)
			}
			if got.Owner != "admin" || got.Resource != "services" || got.RecordID != "s1" {
				t.Errorf("Unexpected snapshot metadata: %+v", got)
			}

			changed, err = store.SaveDraft(snapshot("d1", "admin", `{"values":{"title":"Cloud Migration"}}`))
			if err != nil {
				t.Fatalf("SaveDraft: %v", err)
			}
			if changed {
				t.Error("Expected identical content to be skipped")
			}

			changed, err = store.SaveDraft(snapshot("d1", "admin", `{"values":{"title":"Edge"}}`))
			if err != nil || !changed {
				t.Errorf("Expected new content to be saved, changed=%v err=%v", changed, err)
			}
			got, _ = store.GetDraft("d1")
			if string(got.Content) != `{"values":{"title":"Edge"}}` {
				t.Errorf("Expected updated content, got %s", got.Content)
			}
		})
	}
}

func TestDraftStoreNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.GetDraft("missing")
			if !errors.Is(err, model.ErrNotFound) {
				t.Errorf("Expected ErrNotFound, got %v", err)
			}
			if err := store.DeleteDraft("missing"); err != nil {
				t.Errorf("Expected deleting a missing draft to succeed, got %v", err)
			}
		})
	}
}

func TestDraftStoreListAndDelete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, s := range []*Snapshot{
				snapshot("a", "admin", "1"),
				snapshot("b", "other", "2"),
				snapshot("c", "admin", "3"),
			} {
				if _, err := store.SaveDraft(s); err != nil {
					t.Fatalf("SaveDraft: %v", err)
				}
				time.Sleep(2 * time.Millisecond)
			}

			list, err := store.ListDrafts("admin")
			if err != nil {
				t.Fatalf("ListDrafts: %v", err)
			}
			if len(list) != 2 {
				t.Fatalf("Expected 2 drafts, got %d", len(list))
			}
			if list[0].ID != "c" || list[1].ID != "a" {
				t.Errorf("Expected newest first, got %s, %s", list[0].ID, list[1].ID)
			}
			if list[0].Content != nil {
				t.Error("Expected listing to omit content")
			}

			if err := store.DeleteDraft("c"); err != nil {
				t.Fatalf("DeleteDraft: %v", err)
			}
			list, _ = store.ListDrafts("admin")
			if len(list) != 1 {
				t.Errorf("Expected 1 draft after delete, got %d", len(list))
			}
		})
	}
}

func TestDraftStorePrune(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.SaveDraft(snapshot("old", "admin", "x")); err != nil {
				t.Fatal(err)
			}

			n, err := store.PruneDrafts(time.Now().Add(-time.Hour))
			if err != nil || n != 0 {
				t.Errorf("Expected nothing pruned, got %d (%v)", n, err)
			}

			n, err = store.PruneDrafts(time.Now().Add(time.Hour))
			if err != nil || n != 1 {
				t.Errorf("Expected 1 pruned, got %d (%v)", n, err)
			}
			if _, err := store.GetDraft("old"); !errors.Is(err, model.ErrNotFound) {
				t.Errorf("Expected pruned draft to be gone, got %v", err)
			}
		})
	}
}

func TestDBDraftStoreCompresses(t *testing.T) {
	database := setupTestDB(t)
	store := NewDBDraftStore(database, compression.GzipCompressor{})

	content := []byte(`{"values":{"description":"` + strings.Repeat("a", 200) + `"}}`)
	if _, err := store.SaveDraft(&Snapshot{ID: "z", Resource: "blogs", Content: content}); err != nil {
		t.Fatal(err)
	}

	var stored []byte
	if err := database.QueryRow(`SELECT content FROM draft_snapshots WHERE id = 'z'`).Scan(&stored); err != nil {
		t.Fatal(err)
	}
	if string(stored) == string(content) {
		t.Error("Expected stored content to be compressed")
	}

	got, err := store.GetDraft("z")
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Content) != string(content) {
		t.Errorf("Expected round trip through gzip, got %s", got.Content)
	}
}

func TestNew(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     config.DraftsConfig
		want    string
		wantErr bool
	}{
		{name: "Memory", cfg: config.DraftsConfig{Store: config.StoreMemory}, want: "*repository.MemoryDraftStore"},
		{name: "SQLite", cfg: config.DraftsConfig{Store: config.StoreSQLite, Compression: "zstd"}, want: "*repository.DBDraftStore"},
		{name: "Bad compression", cfg: config.DraftsConfig{Store: config.StoreSQLite, Compression: "brotli"}, wantErr: true},
		{name: "Unknown store", cfg: config.DraftsConfig{Store: "redis"}, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := New(tc.cfg, nil)
			if tc.wantErr {
				if err == nil {
					t.Error("Expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got := typeName(store); got != tc.want {
				t.Errorf("Expected %s, got %s", tc.want, got)
			}
		})
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *MemoryDraftStore:
		return "*repository.MemoryDraftStore"
	case *DBDraftStore:
		return "*repository.DBDraftStore"
	default:
		return "unknown"
	}
}
