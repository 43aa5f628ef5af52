// manager_test.go - Tests for storage layer
package storage

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func createTestStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func TestNewLocalStore(t *testing.T) {
	t.Run("creates upload directory", func(t *testing.T) {
		uploadDir := filepath.Join(t.TempDir(), "uploads")

		store, err := NewLocalStore(uploadDir)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		if store.uploadDir != uploadDir {
			t.Errorf("Expected uploadDir %s, got %s", uploadDir, store.uploadDir)
		}
		if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
			t.Error("Expected upload directory to be created")
		}
	})
}

func TestLocalStore_Save(t *testing.T) {
	store := createTestStore(t)

	content := "%PDF-1.4 fake"
	info, err := store.Save("report.pdf", "application/pdf", strings.NewReader(content))
	if err != nil {
		t.Fatalf("Failed to save file: %v", err)
	}

	if info.ID == "" {
		t.Error("Expected ID to be set")
	}
	if info.Name != "report.pdf" {
		t.Errorf("Expected name 'report.pdf', got %v", info.Name)
	}
	if info.MimeType != "application/pdf" {
		t.Errorf("Expected mime type application/pdf, got %v", info.MimeType)
	}
	if info.Size != int64(len(content)) {
		t.Errorf("Expected size %d, got %d", len(content), info.Size)
	}

	data, err := store.ReadAll(info.ID)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(data) != content {
		t.Errorf("Expected content %q, got %q", content, data)
	}
}

func TestLocalStore_Delete(t *testing.T) {
	store := createTestStore(t)

	info, _ := store.Save("a.pdf", "application/pdf", strings.NewReader("x"))
	path := filepath.Join(store.uploadDir, info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected file to be removed from disk")
	}
	if _, err := store.ReadAll(info.ID); err == nil {
		t.Error("Expected error reading deleted file")
	}
	if err := store.Delete(info.ID); err == nil {
		t.Error("Expected error deleting twice")
	}
}

func TestLocalStore_Purge(t *testing.T) {
	store := createTestStore(t)

	for i := 0; i < 3; i++ {
		store.Save("a.pdf", "application/pdf", strings.NewReader("x"))
	}
	// Leftover from an earlier run, unknown to this store.
	if err := os.WriteFile(filepath.Join(store.uploadDir, "stale"), []byte("old"), 0644); err != nil {
		t.Fatalf("Failed to write stale file: %v", err)
	}

	if err := store.Purge(); err != nil {
		t.Fatalf("Failed to purge: %v", err)
	}

	if store.Len() != 0 {
		t.Errorf("Expected no files after purge, got %d", store.Len())
	}
	entries, _ := os.ReadDir(store.uploadDir)
	if len(entries) != 0 {
		t.Errorf("Expected empty upload directory, got %d entries", len(entries))
	}
}

func TestLocalStore_ConcurrentAccess(t *testing.T) {
	store := createTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := store.Save("c.pdf", "application/pdf", strings.NewReader("concurrent"))
			if err != nil {
				t.Errorf("Save failed: %v", err)
				return
			}
			if _, err := store.ReadAll(info.ID); err != nil {
				t.Errorf("ReadAll failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if store.Len() != 10 {
		t.Errorf("Expected 10 files, got %d", store.Len())
	}
}
