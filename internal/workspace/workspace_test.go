package workspace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cuemby/aegis/internal/apierr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "workspaces")
	tmp := filepath.Join(t.TempDir(), "tmp")
	s := New(root, tmp, 1024, time.Hour, time.Hour)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestCreateWorkspaceIdempotent(t *testing.T) {
	s := newTestStore(t)

	root1, err := s.CreateWorkspace("mission-1")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	root2, err := s.CreateWorkspace("mission-1")
	if err != nil {
		t.Fatalf("CreateWorkspace() second call error = %v", err)
	}
	if root1 != root2 {
		t.Errorf("expected idempotent root path, got %q then %q", root1, root2)
	}

	for _, sub := range standardSubdirs {
		if _, err := os.Stat(filepath.Join(root1, sub)); err != nil {
			t.Errorf("expected subdirectory %q to exist: %v", sub, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root1, ".aegis", "metadata.json")); err != nil {
		t.Errorf("expected metadata.json to exist: %v", err)
	}
}

func TestWriteReadFile(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	if err := s.WriteFile("mission-1", "src/main.go", []byte("package main"), WriteOptions{CreateParents: true, Overwrite: true}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	data, err := s.ReadFile("mission-1", "src/main.go", 0)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "package main" {
		t.Errorf("ReadFile() = %q, want %q", data, "package main")
	}
}

func TestWriteFileRejectsOverwrite(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	if err := s.WriteFile("mission-1", "a.txt", []byte("one"), WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	err := s.WriteFile("mission-1", "a.txt", []byte("two"), WriteOptions{Overwrite: false})
	if !apierr.Is(err, apierr.AlreadyExists) {
		t.Errorf("expected AlreadyExists, got %v", err)
	}
}

func TestWriteFileSizeCap(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	tooBig := make([]byte, 2048)
	err := s.WriteFile("mission-1", "big.bin", tooBig, WriteOptions{Overwrite: true})
	if !apierr.Is(err, apierr.FileTooLarge) {
		t.Errorf("expected FileTooLarge, got %v", err)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	_, err := s.ReadFile("mission-1", "../../etc/passwd", 0)
	if !apierr.Is(err, apierr.InvalidPath) {
		t.Errorf("expected InvalidPath, got %v", err)
	}

	err = s.WriteFile("mission-1", "../escape.txt", []byte("x"), WriteOptions{Overwrite: true})
	if !apierr.Is(err, apierr.InvalidPath) {
		t.Errorf("expected InvalidPath for write, got %v", err)
	}
}

func TestUnknownMissionWorkspaceMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ReadFile("ghost-mission", "a.txt", 0)
	if !apierr.Is(err, apierr.WorkspaceMissing) {
		t.Errorf("expected WorkspaceMissing, got %v", err)
	}
}

func TestDeleteWorkspace(t *testing.T) {
	s := newTestStore(t)
	root, err := s.CreateWorkspace("mission-1")
	if err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}

	if err := s.DeleteWorkspace("mission-1"); err != nil {
		t.Fatalf("DeleteWorkspace() error = %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Errorf("expected workspace directory to be removed")
	}

	err = s.DeleteWorkspace("mission-1")
	if !apierr.Is(err, apierr.WorkspaceMissing) {
		t.Errorf("expected WorkspaceMissing on second delete, got %v", err)
	}
}

func TestCreateTempFileAndDelete(t *testing.T) {
	s := newTestStore(t)

	path, err := s.CreateTempFile([]byte("scratch"), ".txt")
	if err != nil {
		t.Fatalf("CreateTempFile() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected temp file to exist: %v", err)
	}

	if err := s.DeleteTempFile(path); err != nil {
		t.Fatalf("DeleteTempFile() error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("expected temp file to be removed")
	}
}

func TestDeleteTempFileRejectsEscaping(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteTempFile("/etc/passwd")
	if !apierr.Is(err, apierr.InvalidPath) {
		t.Errorf("expected InvalidPath, got %v", err)
	}
}

func TestListFiles(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	if err := s.WriteFile("mission-1", "src/a.go", []byte("a"), WriteOptions{Overwrite: true}); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	names, err := s.ListFiles("mission-1", "src")
	if err != nil {
		t.Fatalf("ListFiles() error = %v", err)
	}
	if len(names) != 1 || names[0] != "a.go" {
		t.Errorf("ListFiles() = %v, want [a.go]", names)
	}
}

func TestStartupScanRegistersExistingWorkspace(t *testing.T) {
	root := filepath.Join(t.TempDir(), "workspaces")
	tmp := filepath.Join(t.TempDir(), "tmp")

	first := New(root, tmp, 1024, time.Hour, time.Hour)
	if err := first.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := first.CreateWorkspace("mission-1"); err != nil {
		t.Fatalf("CreateWorkspace() error = %v", err)
	}
	first.Stop()

	second := New(root, tmp, 1024, time.Hour, time.Hour)
	if err := second.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer second.Stop()

	ws, ok := second.Get("mission-1")
	if !ok {
		t.Fatal("expected startup scan to register pre-existing workspace")
	}
	if ws.MissionID != "mission-1" {
		t.Errorf("expected mission id 'mission-1', got %q", ws.MissionID)
	}
}
