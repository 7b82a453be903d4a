// Package file provides an InstanceStore that keeps each instance as a JSON file,
// for single-process deployments and the CLI.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
)

const ext = ".json"

// Store implements ports.InstanceStore using the local filesystem.
// Instances live at <BasePath>/<workflow>/<entity>.json, with both names path-escaped.
type Store struct {
	BasePath string
}

var _ ports.InstanceStore = (*Store)(nil)

// New creates a new Store with the given base path.
// If basePath is empty, it defaults to ".flowstate/instances".
func New(basePath string) *Store {
	if basePath == "" {
		basePath = filepath.Join(".flowstate", "instances")
	}
	return &Store{BasePath: basePath}
}

// segment escapes a name into a single path element. "." and ".." are
// percent-encoded since PathEscape leaves them as they are.
func segment(name string) string {
	escaped := url.PathEscape(name)
	if strings.Trim(escaped, ".") == "" {
		return strings.ReplaceAll(escaped, ".", "%2E")
	}
	return escaped
}

func (s *Store) dir(workflowName string) string {
	return filepath.Join(s.BasePath, segment(workflowName))
}

func (s *Store) path(workflowName, entityID string) string {
	return filepath.Join(s.dir(workflowName), segment(entityID)+ext)
}

// Save persists the instance to a JSON file atomically.
// It writes to a temporary file first, syncs via fsync, and then renames it to the destination.
func (s *Store) Save(ctx context.Context, inst *domain.WorkflowInstance) error {
	if inst.WorkflowName == "" || inst.EntityID == "" {
		return fmt.Errorf("workflow name and entity id cannot be empty")
	}

	dir := s.dir(inst.WorkflowName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to ensure instance directory: %w", err)
	}

	data, err := json.MarshalIndent(inst, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}

	// Same directory as the destination, so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-*"+ext+".part")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // no-op once renamed
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Cannot rename an open file on Windows.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	destPath := s.path(inst.WorkflowName, inst.EntityID)
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file to instance file: %w", err)
	}
	return nil
}

// Load retrieves the instance from its JSON file.
func (s *Store) Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	data, err := os.ReadFile(s.path(workflowName, entityID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to read instance file: %w", err)
	}

	var inst domain.WorkflowInstance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, fmt.Errorf("failed to unmarshal instance: %w", err)
	}
	return &inst, nil
}

// Delete removes the instance file.
func (s *Store) Delete(ctx context.Context, workflowName, entityID string) error {
	err := os.Remove(s.path(workflowName, entityID))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete instance file: %w", err)
	}
	return nil
}

// List returns every instance of the workflow, sorted by entity ID.
func (s *Store) List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	entries, err := os.ReadDir(s.dir(workflowName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []*domain.WorkflowInstance{}, nil
		}
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	out := make([]*domain.WorkflowInstance, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		entityID, err := url.PathUnescape(strings.TrimSuffix(name, ext))
		if err != nil {
			continue
		}
		inst, err := s.Load(ctx, workflowName, entityID)
		if errors.Is(err, domain.ErrInstanceNotFound) {
			continue // deleted concurrently
		}
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}
