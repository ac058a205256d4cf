package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatal("database file not created")
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	ctx := context.Background()

	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Save(ctx, "k", 2, "normalized", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("Save: %v", err)
	}
	s.Close()

	s, err = New(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()

	got, err := s.Load(ctx, "k")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("expected payload to survive reopen, got %q", got)
	}
}

func TestLoad_NotFound(t *testing.T) {
	s := testStore(t)

	_, err := s.Load(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutBlob_Overwrites(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.PutBlob(ctx, Blob{Key: "state", Version: 1, Payload: []byte("one")}); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}
	if err := s.PutBlob(ctx, Blob{Key: "state", Version: 2, Shape: "normalized", Payload: []byte("two")}); err != nil {
		t.Fatalf("PutBlob: %v", err)
	}

	b, err := s.GetBlob(ctx, "state")
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if string(b.Payload) != "two" {
		t.Errorf("expected payload 'two', got %q", b.Payload)
	}
	if b.Version != 2 {
		t.Errorf("expected version 2, got %d", b.Version)
	}
	if b.Shape != "normalized" {
		t.Errorf("expected shape normalized, got %q", b.Shape)
	}
	if time.Since(b.UpdatedAt) > time.Minute {
		t.Errorf("expected recent updated_at, got %v", b.UpdatedAt)
	}
}

func TestPutBlob_DefaultShapeIsLegacy(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.PutBlob(ctx, Blob{Key: "state", Version: 1, Payload: []byte("{}")})
	b, err := s.GetBlob(ctx, "state")
	if err != nil {
		t.Fatalf("GetBlob: %v", err)
	}
	if b.Shape != "legacy" {
		t.Errorf("expected default shape legacy, got %q", b.Shape)
	}
}

func TestBackups(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	first, err := s.Backup(ctx, "state", "undecodable", []byte("garbage"))
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	second, _ := s.Backup(ctx, "state", "pre-migration", []byte("{}"))
	s.Backup(ctx, "other", "x", []byte("{}"))

	list, err := s.ListBackups(ctx, "state")
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 backups, got %d", len(list))
	}
	if list[0].ID != second || list[1].ID != first {
		t.Errorf("expected newest first, got %d then %d", list[0].ID, list[1].ID)
	}
	if list[0].Payload != nil {
		t.Error("expected list to omit payloads")
	}

	b, err := s.GetBackup(ctx, first)
	if err != nil {
		t.Fatalf("GetBackup: %v", err)
	}
	if string(b.Payload) != "garbage" || b.Reason != "undecodable" {
		t.Errorf("unexpected backup: %+v", b)
	}

	if _, err := s.GetBackup(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteFile_ReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "export.json")

	if err := WriteFile(path, []byte(`{"pillars":[]}`)); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != `{"pillars":[]}` {
		t.Errorf("unexpected content %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected temp file to be cleaned up, found %d entries", len(entries))
	}
}

func TestDatasetClone_IsDeep(t *testing.T) {
	done := time.Now()
	d := DefaultDataset()
	d.Pillars = append(d.Pillars, Pillar{
		ID:   1,
		Name: "Ship",
		Tasks: []Task{{
			ID:              1,
			CompletedAt:     &done,
			ProgressHistory: []ProgressEntry{{Value: 10, At: done}},
		}},
	})
	d.Sessions.Current = &FinishSession{ID: "s1"}

	c := d.Clone()
	c.Pillars[0].Tasks[0].ProgressHistory[0].Value = 99
	c.Pillars[0].Name = "Changed"
	c.Sessions.Current.ID = "s2"
	*c.Pillars[0].Tasks[0].CompletedAt = done.Add(time.Hour)

	if d.Pillars[0].Tasks[0].ProgressHistory[0].Value != 10 {
		t.Error("clone shares progress history")
	}
	if d.Pillars[0].Name != "Ship" {
		t.Error("clone shares pillars")
	}
	if d.Sessions.Current.ID != "s1" {
		t.Error("clone shares current session")
	}
	if !d.Pillars[0].Tasks[0].CompletedAt.Equal(done) {
		t.Error("clone shares completedAt")
	}
}

func TestDatasetTaskLookup(t *testing.T) {
	d := DefaultDataset()
	d.Pillars = []Pillar{
		{ID: 1, Tasks: []Task{{ID: 10}}},
		{ID: 2, Tasks: []Task{{ID: 20}, {ID: 21}}},
	}

	task, pillar := d.Task(21)
	if task == nil || pillar == nil || pillar.ID != 2 {
		t.Fatalf("expected task 21 in pillar 2, got %v %v", task, pillar)
	}
	task.Progress = 50
	if d.Pillars[1].Tasks[1].Progress != 50 {
		t.Error("expected Task to return a pointer into the dataset")
	}
	if task, _ := d.Task(99); task != nil {
		t.Error("expected nil for unknown task")
	}
	if len(d.AllTasks()) != 3 {
		t.Errorf("expected 3 tasks, got %d", len(d.AllTasks()))
	}
}
