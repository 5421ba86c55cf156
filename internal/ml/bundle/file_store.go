package bundle

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"soilsense/pkg/errors"
	"soilsense/pkg/logger"
)

const currentFile = "CURRENT"

// FileStore keeps one directory per version under a root directory.
// A version directory is complete before it becomes visible, and CURRENT is replaced atomically.
type FileStore struct {
	dir string
	log *logger.Logger
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the root directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "create artifact dir %s", dir)
	}
	return &FileStore{
		dir: dir,
		log: logger.Get().With("component", "bundle_file_store"),
	}, nil
}

// Save writes b into a staging directory, renames it into place and points CURRENT at it
func (s *FileStore) Save(ctx context.Context, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	artifacts, err := Encode(b)
	if err != nil {
		return err
	}

	staging, err := os.MkdirTemp(s.dir, ".staging-")
	if err != nil {
		return errors.Wrap(err, "create staging dir")
	}
	defer os.RemoveAll(staging)
	if err := os.Chmod(staging, 0o755); err != nil {
		return errors.Wrap(err, "chmod staging dir")
	}

	var total uint64
	for name, data := range artifacts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(staging, name), data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", name)
		}
		total += uint64(len(data))
	}

	if err := os.Rename(staging, s.versionDir(b.Version)); err != nil {
		return errors.Wrapf(err, "publish version %s", b.Version)
	}

	if err := s.writeCurrent(b.Version); err != nil {
		return err
	}

	s.log.Infow("Bundle saved",
		"version", b.Version,
		"k", b.K(),
		"size", humanize.Bytes(total),
		"dir", s.dir,
	)
	return nil
}

// Load reads one version directory
func (s *FileStore) Load(ctx context.Context, version string) (*Bundle, error) {
	dir := s.versionDir(version)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrapf(errors.ErrNotFound, "bundle version %s", version)
		}
		return nil, errors.Wrapf(err, "read version dir %s", dir)
	}

	artifacts := make(map[string][]byte, len(entries))
	for _, e := range entries {
		if e.IsDir() || e.Name() == ArtifactCenters {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", e.Name())
		}
		artifacts[e.Name()] = data
	}

	b, err := Decode(artifacts)
	if err != nil {
		return nil, errors.Wrapf(err, "load bundle %s", version)
	}
	if b.Version != version {
		return nil, errors.NewArtifactMismatch("directory %s holds bundle %s", version, b.Version)
	}
	return b, nil
}

// Current returns the version named in CURRENT
func (s *FileStore) Current(_ context.Context) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, currentFile))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.ErrNoModel
		}
		return "", errors.Wrap(err, "read current version")
	}
	version := strings.TrimSpace(string(data))
	if version == "" {
		return "", errors.ErrNoModel
	}
	return version, nil
}

// Versions lists version directories ordered by modification time
func (s *FileStore) Versions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.Wrap(err, "list artifact dir")
	}

	type versionDir struct {
		name    string
		modTime int64
	}
	var dirs []versionDir
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dirs = append(dirs, versionDir{e.Name(), info.ModTime().UnixNano()})
	}
	sort.SliceStable(dirs, func(i, j int) bool { return dirs[i].modTime < dirs[j].modTime })

	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = d.name
	}
	return out, nil
}

func (s *FileStore) versionDir(version string) string {
	return filepath.Join(s.dir, filepath.Base(version))
}

func (s *FileStore) writeCurrent(version string) error {
	tmp, err := os.CreateTemp(s.dir, ".current-")
	if err != nil {
		return errors.Wrap(err, "create current pointer")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(version + "\n"); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write current pointer")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close current pointer")
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, currentFile)); err != nil {
		return errors.Wrap(err, "replace current pointer")
	}
	return nil
}
