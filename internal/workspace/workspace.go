// Package workspace implements the Workspace Store (C1): per-mission
// isolated directories with path-traversal-safe file operations, a size
// cap, TTL eviction, and a startup scan of pre-existing workspaces.
package workspace

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cuemby/aegis/internal/apierr"
	"github.com/cuemby/aegis/internal/log"
	"github.com/cuemby/aegis/internal/types"
)

const metadataVersion = 1

var standardSubdirs = []string{"src", "tests", "docs", ".aegis"}

// WriteOptions configures writeFile's overwrite/parent-creation behavior.
type WriteOptions struct {
	CreateParents bool
	Overwrite     bool
}

// Store is the Workspace Store. All operations are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	root       string
	tempRoot   string
	maxFileBytes int64
	ttl        time.Duration
	sweepEvery time.Duration

	workspaces map[string]*types.Workspace

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a Store rooted at root, with temp files under tempRoot.
func New(root, tempRoot string, maxFileBytes int64, ttl, sweepEvery time.Duration) *Store {
	return &Store{
		root:         root,
		tempRoot:     tempRoot,
		maxFileBytes: maxFileBytes,
		ttl:          ttl,
		sweepEvery:   sweepEvery,
		workspaces:   make(map[string]*types.Workspace),
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start ensures the root/temp directories exist, performs the startup scan
// (spec §4.1), and launches the TTL sweep goroutine.
func (s *Store) Start() error {
	if err := os.MkdirAll(s.root, 0755); err != nil {
		return apierr.Wrap(apierr.IoFailure, "create workspace root", err)
	}
	if err := os.MkdirAll(s.tempRoot, 0755); err != nil {
		return apierr.Wrap(apierr.IoFailure, "create temp root", err)
	}
	if err := s.startupScan(); err != nil {
		return err
	}
	go s.sweepLoop()
	return nil
}

// Stop signals the sweep goroutine to exit and waits for it.
func (s *Store) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

// startupScan walks the root directory, registering any pre-existing
// workspace it finds (identified by <root>/<missionId>/.aegis/metadata.json)
// and computing its size and file count.
func (s *Store) startupScan() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return apierr.Wrap(apierr.IoFailure, "scan workspace root", err)
	}

	logger := log.WithComponent("workspace")
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		missionID := entry.Name()
		metaPath := filepath.Join(s.root, missionID, ".aegis", "metadata.json")
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var meta types.WorkspaceMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			logger.Warn().Str("mission_id", missionID).Err(err).Msg("skipping workspace with unreadable metadata")
			continue
		}

		ws := &types.Workspace{
			MissionID:      missionID,
			Root:           filepath.Join(s.root, missionID),
			CreatedAt:      meta.CreatedAt,
			LastAccessedAt: time.Now(),
		}
		ws.FileCount, ws.TotalBytes = sizeOf(ws.Root)
		s.workspaces[missionID] = ws
		logger.Info().Str("mission_id", missionID).Msg("registered pre-existing workspace")
	}
	return nil
}

func sizeOf(root string) (count int, bytes int64) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		count++
		bytes += info.Size()
		return nil
	})
	return count, bytes
}

// CreateWorkspace creates the mission's directory tree if it doesn't
// already exist (idempotent) and returns its root path.
func (s *Store) CreateWorkspace(missionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ws, ok := s.workspaces[missionID]; ok {
		return ws.Root, nil
	}

	root := filepath.Join(s.root, missionID)
	for _, sub := range standardSubdirs {
		if err := os.MkdirAll(filepath.Join(root, sub), 0755); err != nil {
			return "", apierr.Wrap(apierr.IoFailure, "create workspace subdirectory", err)
		}
	}

	now := time.Now()
	meta := types.WorkspaceMetadata{MissionID: missionID, CreatedAt: now, Version: metadataVersion}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", apierr.Wrap(apierr.IoFailure, "marshal workspace metadata", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".aegis", "metadata.json"), data, 0644); err != nil {
		return "", apierr.Wrap(apierr.IoFailure, "write workspace metadata", err)
	}

	s.workspaces[missionID] = &types.Workspace{
		MissionID:      missionID,
		Root:           root,
		CreatedAt:      now,
		LastAccessedAt: now,
	}
	log.WithComponent("workspace").Info().Str("mission_id", missionID).Msg("workspace created")
	return root, nil
}

// resolve joins relpath onto the mission's root and rejects any path that
// escapes it once normalised (spec §3, §4.1 path-traversal guard).
func (s *Store) resolve(missionID, relpath string) (string, *types.Workspace, error) {
	ws, ok := s.workspaces[missionID]
	if !ok {
		return "", nil, apierr.New(apierr.WorkspaceMissing, "unknown mission workspace: "+missionID)
	}

	joined := filepath.Join(ws.Root, relpath)
	cleanRoot := filepath.Clean(ws.Root)
	if joined != cleanRoot && !strings.HasPrefix(joined, cleanRoot+string(os.PathSeparator)) {
		return "", nil, apierr.New(apierr.InvalidPath, "path escapes workspace root: "+relpath)
	}
	return joined, ws, nil
}

// ReadFile reads relpath under the mission's workspace, enforcing maxBytes
// (0 means use the store's configured default).
func (s *Store) ReadFile(missionID, relpath string, maxBytes int64) ([]byte, error) {
	s.mu.Lock()
	path, ws, err := s.resolve(missionID, relpath)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ws.LastAccessedAt = time.Now()
	s.mu.Unlock()

	if maxBytes <= 0 {
		maxBytes = s.maxFileBytes
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.New(apierr.NotFound, "file not found: "+relpath)
		}
		return nil, apierr.Wrap(apierr.IoFailure, "stat file", err)
	}
	if info.Size() > maxBytes {
		return nil, apierr.New(apierr.FileTooLarge, "file exceeds size cap: "+relpath)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apierr.Wrap(apierr.IoFailure, "read file", err)
	}
	return data, nil
}

// WriteFile writes bytes to relpath under the mission's workspace.
func (s *Store) WriteFile(missionID, relpath string, data []byte, opts WriteOptions) error {
	s.mu.Lock()
	path, ws, err := s.resolve(missionID, relpath)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	ws.LastAccessedAt = time.Now()
	s.mu.Unlock()

	if int64(len(data)) > s.maxFileBytes {
		return apierr.New(apierr.FileTooLarge, "write exceeds size cap: "+relpath)
	}

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return apierr.New(apierr.AlreadyExists, "file already exists: "+relpath)
		}
	}

	if opts.CreateParents {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return apierr.Wrap(apierr.IoFailure, "create parent directories", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return apierr.Wrap(apierr.IoFailure, "write file", err)
	}

	s.mu.Lock()
	ws.FileCount, ws.TotalBytes = sizeOf(ws.Root)
	s.mu.Unlock()
	return nil
}

// DeleteFile removes relpath under the mission's workspace.
func (s *Store) DeleteFile(missionID, relpath string) error {
	s.mu.Lock()
	path, ws, err := s.resolve(missionID, relpath)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apierr.New(apierr.NotFound, "file not found: "+relpath)
		}
		return apierr.Wrap(apierr.IoFailure, "delete file", err)
	}

	s.mu.Lock()
	ws.FileCount, ws.TotalBytes = sizeOf(ws.Root)
	s.mu.Unlock()
	return nil
}

// ListFiles lists entries directly under relpath in the mission's
// workspace.
func (s *Store) ListFiles(missionID, relpath string) ([]string, error) {
	s.mu.Lock()
	path, ws, err := s.resolve(missionID, relpath)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	ws.LastAccessedAt = time.Now()
	s.mu.Unlock()

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.New(apierr.NotFound, "directory not found: "+relpath)
		}
		return nil, apierr.Wrap(apierr.IoFailure, "list directory", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// CopyFile copies srcRelpath to dstRelpath within the same mission
// workspace.
func (s *Store) CopyFile(missionID, srcRelpath, dstRelpath string, opts WriteOptions) error {
	data, err := s.ReadFile(missionID, srcRelpath, 0)
	if err != nil {
		return err
	}
	return s.WriteFile(missionID, dstRelpath, data, opts)
}

// CreateDirectory creates relpath (and parents) under the mission's
// workspace.
func (s *Store) CreateDirectory(missionID, relpath string) error {
	s.mu.Lock()
	path, _, err := s.resolve(missionID, relpath)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(path, 0755); err != nil {
		return apierr.Wrap(apierr.IoFailure, "create directory", err)
	}
	return nil
}

// DeleteWorkspace removes a mission's entire workspace tree and forgets it.
func (s *Store) DeleteWorkspace(missionID string) error {
	s.mu.Lock()
	ws, ok := s.workspaces[missionID]
	if !ok {
		s.mu.Unlock()
		return apierr.New(apierr.WorkspaceMissing, "unknown mission workspace: "+missionID)
	}
	delete(s.workspaces, missionID)
	s.mu.Unlock()

	if err := os.RemoveAll(ws.Root); err != nil {
		return apierr.Wrap(apierr.IoFailure, "delete workspace", err)
	}
	log.WithComponent("workspace").Info().Str("mission_id", missionID).Msg("workspace deleted")
	return nil
}

// CreateTempFile writes data to a new file under the temp root named
// <uuid><ext> and returns its absolute path.
func (s *Store) CreateTempFile(data []byte, ext string) (string, error) {
	if int64(len(data)) > s.maxFileBytes {
		return "", apierr.New(apierr.FileTooLarge, "temp file exceeds size cap")
	}
	name := uuid.NewString() + ext
	path := filepath.Join(s.tempRoot, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", apierr.Wrap(apierr.IoFailure, "write temp file", err)
	}
	return path, nil
}

// DeleteTempFile removes a temp file, rejecting paths outside the temp
// root.
func (s *Store) DeleteTempFile(absPath string) error {
	cleanRoot := filepath.Clean(s.tempRoot)
	cleanPath := filepath.Clean(absPath)
	if cleanPath != cleanRoot && !strings.HasPrefix(cleanPath, cleanRoot+string(os.PathSeparator)) {
		return apierr.New(apierr.InvalidPath, "path escapes temp root")
	}
	if err := os.Remove(cleanPath); err != nil {
		if os.IsNotExist(err) {
			return apierr.New(apierr.NotFound, "temp file not found")
		}
		return apierr.Wrap(apierr.IoFailure, "delete temp file", err)
	}
	return nil
}

// sweepLoop runs the TTL eviction sweep (workspaces and temp files) on its
// own ticker until Stop is called.
func (s *Store) sweepLoop() {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweepWorkspaces()
			s.sweepTempFiles()
		}
	}
}

func (s *Store) sweepWorkspaces() {
	now := time.Now()
	logger := log.WithComponent("workspace")

	s.mu.Lock()
	var expired []string
	for id, ws := range s.workspaces {
		if now.Sub(ws.LastAccessedAt) > s.ttl {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		delete(s.workspaces, id)
	}
	s.mu.Unlock()

	for _, id := range expired {
		root := filepath.Join(s.root, id)
		if err := os.RemoveAll(root); err != nil {
			logger.Warn().Str("mission_id", id).Err(err).Msg("failed to evict expired workspace")
			continue
		}
		logger.Info().Str("mission_id", id).Msg("evicted expired workspace")
	}
}

const tempFileTTL = time.Hour

func (s *Store) sweepTempFiles() {
	entries, err := os.ReadDir(s.tempRoot)
	if err != nil {
		return
	}
	now := time.Now()
	logger := log.WithComponent("workspace")
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > tempFileTTL {
			path := filepath.Join(s.tempRoot, entry.Name())
			if err := os.Remove(path); err != nil {
				logger.Warn().Str("path", path).Err(err).Msg("failed to evict expired temp file")
			}
		}
	}
}

// Get returns a snapshot of a mission's workspace record.
func (s *Store) Get(missionID string) (types.Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ws, ok := s.workspaces[missionID]
	if !ok {
		return types.Workspace{}, false
	}
	return *ws, true
}
