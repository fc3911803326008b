package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

type recordingStore struct {
	keys         []string
	contentTypes []string
	bodies       []string
	failUpload   bool
}

func (s *recordingStore) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	if s.failUpload {
		return "", io.ErrUnexpectedEOF
	}
	data, _ := io.ReadAll(body)
	s.keys = append(s.keys, key)
	s.contentTypes = append(s.contentTypes, contentType)
	s.bodies = append(s.bodies, string(data))
	return "https://cdn.example.com/" + key, nil
}

func (s *recordingStore) Delete(ctx context.Context, key string) error { return nil }

func (s *recordingStore) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func TestMigrateCopiesToDeterministicKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	store := &recordingStore{}
	migrator := NewMigrator(store, srv.Client(), zerolog.Nop())

	url, err := migrator.Migrate(context.Background(), "owner-1", "job-1", 0, srv.URL+"/out/result.png?token=abc")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if url != "https://cdn.example.com/assets/owner-1/job-1/0.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if len(store.keys) != 1 || store.keys[0] != "assets/owner-1/job-1/0.png" {
		t.Fatalf("unexpected keys %v", store.keys)
	}
	if store.bodies[0] != "png-bytes" {
		t.Fatalf("body not copied: %q", store.bodies[0])
	}
	if store.contentTypes[0] != "image/png" {
		t.Fatalf("content type not forwarded: %q", store.contentTypes[0])
	}
}

func TestMigrateSameOutputLandsOnSameKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	store := &recordingStore{}
	migrator := NewMigrator(store, srv.Client(), zerolog.Nop())

	for range 2 {
		if _, err := migrator.Migrate(context.Background(), "owner-1", "job-1", 0, srv.URL+"/result.mp4"); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}
	if len(store.keys) != 2 || store.keys[0] != store.keys[1] {
		t.Fatalf("expected identical keys, got %v", store.keys)
	}
}

func TestMigrateSourceGone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	migrator := NewMigrator(&recordingStore{}, srv.Client(), zerolog.Nop())
	_, err := migrator.Migrate(context.Background(), "owner-1", "job-1", 0, srv.URL+"/gone.png")
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}

	url, err := store.Upload(context.Background(), "assets/o/j/0.png", strings.NewReader("content"), "image/png")
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if url != "http://localhost:8080/files/assets/o/j/0.png" {
		t.Fatalf("unexpected url %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "assets", "o", "j", "0.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "content" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(context.Background(), "assets/o/j/0.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "assets", "o", "j", "0.png")); !os.IsNotExist(err) {
		t.Fatalf("file should be gone, stat err = %v", err)
	}
	// deleting again is fine
	if err := store.Delete(context.Background(), "assets/o/j/0.png"); err != nil {
		t.Fatalf("repeat delete: %v", err)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "http://localhost:8080/files")
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if _, err := store.Upload(context.Background(), "../escape.txt", strings.NewReader("x"), "text/plain"); err == nil {
		t.Fatal("expected traversal key to be rejected")
	}
}
