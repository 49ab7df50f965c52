package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	releasesDir = "releases"
	currentLink = "current"
)

// FSHost serves bundles from {root}/{slug}/current, a symlink into
// {root}/{slug}/releases/{id}. Commit swaps the link with rename(2).
type FSHost struct {
	root string
}

func NewFSHost(root string) (*FSHost, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create bundle dir: %w", err)
	}
	return &FSHost{root: root}, nil
}

func (h *FSHost) slugDir(slug string) string { return filepath.Join(h.root, slug) }

func (h *FSHost) releaseDir(slug, id string) string {
	return filepath.Join(h.slugDir(slug), releasesDir, id)
}

func (h *FSHost) Location(slug string) string {
	return filepath.Join(h.slugDir(slug), currentLink)
}

func (h *FSHost) Stage(_ context.Context, slug string, files Files) (Release, error) {
	rel := Release{Slug: slug, ID: newReleaseID()}
	dir := h.releaseDir(slug, rel.ID)
	for name, data := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if !strings.HasPrefix(path, dir+string(filepath.Separator)) {
			_ = os.RemoveAll(dir)
			return Release{}, fmt.Errorf("bundle path %q escapes release dir", name)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return Release{}, fmt.Errorf("failed to create %s: %w", filepath.Dir(path), err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			_ = os.RemoveAll(dir)
			return Release{}, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return rel, nil
}

func (h *FSHost) current(slug string) (string, error) {
	target, err := os.Readlink(h.Location(slug))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read current release: %w", err)
	}
	return filepath.Base(target), nil
}

// point makes current reference release id by renaming a fresh link over it.
func (h *FSHost) point(slug, id string) error {
	tmp := filepath.Join(h.slugDir(slug), ".current-"+id)
	_ = os.Remove(tmp)
	if err := os.Symlink(filepath.Join(releasesDir, id), tmp); err != nil {
		return fmt.Errorf("failed to create release link: %w", err)
	}
	if err := os.Rename(tmp, h.Location(slug)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to swap release link: %w", err)
	}
	return nil
}

func (h *FSHost) Commit(_ context.Context, rel Release) (string, error) {
	prev, err := h.current(rel.Slug)
	if err != nil {
		return "", err
	}
	return prev, h.point(rel.Slug, rel.ID)
}

func (h *FSHost) Restore(_ context.Context, slug, previous string) error {
	if previous == "" {
		err := os.Remove(h.Location(slug))
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return h.point(slug, previous)
}

func (h *FSHost) Discard(_ context.Context, rel Release) error {
	return os.RemoveAll(h.releaseDir(rel.Slug, rel.ID))
}

func (h *FSHost) Prune(_ context.Context, slug string) error {
	cur, err := h.current(slug)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(filepath.Join(h.slugDir(slug), releasesDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, e := range entries {
		if cur == "" || e.Name() >= cur {
			continue
		}
		if err := os.RemoveAll(h.releaseDir(slug, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

func (h *FSHost) Remove(_ context.Context, slug string) error {
	return os.RemoveAll(h.slugDir(slug))
}

func (h *FSHost) List(_ context.Context) ([]Listing, error) {
	entries, err := os.ReadDir(h.root)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		l := Listing{Slug: e.Name()}
		if info, err := e.Info(); err == nil {
			l.UpdatedAt = info.ModTime()
		}
		releases, _ := os.ReadDir(filepath.Join(h.root, e.Name(), releasesDir))
		for _, r := range releases {
			if info, err := r.Info(); err == nil && info.ModTime().After(l.UpdatedAt) {
				l.UpdatedAt = info.ModTime()
			}
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}
