package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var ErrPathTraversal = errors.New("path escapes root")

// ResolveWithinRoot maps a client-provided path to a host path under root,
// rejecting any traversal outside it.
func ResolveWithinRoot(root, userPath string) (string, error) {
	if root == "" {
		return "", errors.New("root is required")
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	rootAbs = filepath.Clean(rootAbs)

	p := strings.TrimLeft(userPath, "/\\")
	joined := filepath.Clean(filepath.Join(rootAbs, filepath.FromSlash(p)))

	if !isWithin(rootAbs, joined) {
		return "", ErrPathTraversal
	}
	return joined, nil
}

func isWithin(root, path string) bool {
	if path == root {
		return true
	}
	return strings.HasPrefix(path, root+string(filepath.Separator))
}

// Entry is one directory item in a browse listing.
type Entry struct {
	Name    string    `json:"name"`
	IsDir   bool      `json:"isDir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// LocalVolume exposes a host directory for browsing and uploads.
type LocalVolume struct {
	Root string
}

func NewLocalVolume(root string) *LocalVolume {
	return &LocalVolume{Root: root}
}

func (v *LocalVolume) List(relPath string) ([]Entry, error) {
	dir, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return nil, err
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		info, err := item.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:    item.Name(),
			IsDir:   item.IsDir(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return entries, nil
}

func (v *LocalVolume) Open(relPath string) (*os.File, error) {
	path, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (v *LocalVolume) Save(relPath string, r io.Reader) error {
	path, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

func (v *LocalVolume) Mkdir(relPath string) error {
	path, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0o755)
}

func (v *LocalVolume) Delete(relPath string) error {
	path, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return err
	}
	rootAbs, err := filepath.Abs(v.Root)
	if err != nil {
		return err
	}
	if path == filepath.Clean(rootAbs) {
		return errors.New("refusing to delete volume root")
	}
	return os.RemoveAll(path)
}

func (v *LocalVolume) Stat(relPath string) (os.FileInfo, error) {
	path, err := ResolveWithinRoot(v.Root, relPath)
	if err != nil {
		return nil, err
	}
	return os.Stat(path)
}
