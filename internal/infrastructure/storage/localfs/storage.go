// Package localfs owns the upload folder and its temp spool. Final names
// only ever appear via rename, so a partially written file is never
// visible under its published name.
package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Meirbek-dev/ai-reception/internal/core/domain"
	"github.com/Meirbek-dev/ai-reception/internal/core/ports"
)

// Spooled uploads abandoned by crashed requests are reclaimed after this.
const tempMaxAge = 24 * time.Hour

var errUnsafeName = errors.New("unsafe object name")

type Storage struct {
	basePath string
	tempPath string
}

func New(basePath string) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/uploads"
	}
	tempPath := filepath.Join(basePath, ".spool")
	for _, dir := range []string{basePath, tempPath} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	return &Storage{basePath: basePath, tempPath: tempPath}, nil
}

// SpoolTemp streams an upload into the spool area, aborting mid-stream as
// soon as the running size passes maxBytes.
func (s *Storage) SpoolTemp(ctx context.Context, ext string, data io.Reader, maxBytes int64) (ports.TempFile, error) {
	if err := ctx.Err(); err != nil {
		return ports.TempFile{}, err
	}

	f, err := os.CreateTemp(s.tempPath, "upload_*"+ext)
	if err != nil {
		return ports.TempFile{}, fmt.Errorf("create spool file: %w", err)
	}
	path := f.Name()

	var total int64
	buf := make([]byte, 64*1024)
	for {
		n, readErr := data.Read(buf)
		if n > 0 {
			total += int64(n)
			if total > maxBytes {
				f.Close()
				_ = os.Remove(path)
				return ports.TempFile{}, domain.WrapError(domain.ErrValidation, "spool upload",
					fmt.Errorf("file exceeds %d bytes", maxBytes))
			}
			if _, err := f.Write(buf[:n]); err != nil {
				f.Close()
				_ = os.Remove(path)
				return ports.TempFile{}, fmt.Errorf("write spool file: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			f.Close()
			_ = os.Remove(path)
			return ports.TempFile{}, fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return ports.TempFile{}, fmt.Errorf("close spool file: %w", err)
	}
	return ports.TempFile{Path: path, Size: total}, nil
}

func (s *Storage) ReadTemp(_ context.Context, path string) ([]byte, error) {
	if filepath.Dir(path) != s.tempPath {
		return nil, fmt.Errorf("read spool file: %w: %s", errUnsafeName, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spool file: %w", err)
	}
	return data, nil
}

func (s *Storage) RemoveTemp(_ context.Context, path string) {
	if filepath.Dir(path) != s.tempPath {
		return
	}
	_ = os.Remove(path)
}

// SaveAtomic publishes data under name via write-to-temp + rename.
func (s *Storage) SaveAtomic(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".tmp_*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.basePath, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("publish file: %w", err)
	}
	return nil
}

func (s *Storage) Exists(_ context.Context, name string) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}
	_, err := os.Stat(filepath.Join(s.basePath, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat file: %w", err)
}

func (s *Storage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(s.basePath, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrNotFound, "open file", err)
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// List returns the stored artifacts whose names parse under the stored
// filename convention; foreign files are skipped.
func (s *Storage) List(_ context.Context) ([]ports.StoredFile, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("read upload dir: %w", err)
	}

	var out []ports.StoredFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		parsed, ok := domain.ParseStoredName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		out = append(out, ports.StoredFile{
			ID:           parsed.ID,
			OriginalName: parsed.Name,
			Category:     parsed.Category,
			Filename:     entry.Name(),
			SizeBytes:    info.Size(),
			Modified:     info.ModTime(),
		})
	}
	return out, nil
}

// SweepOlderThan removes stored files past age and spool leftovers past
// tempMaxAge, returning how many files were deleted.
func (s *Storage) SweepOlderThan(ctx context.Context, age time.Duration) (int, error) {
	removed, err := sweepDir(ctx, s.basePath, age)
	if err != nil {
		return removed, err
	}
	spoolRemoved, err := sweepDir(ctx, s.tempPath, tempMaxAge)
	return removed + spoolRemoved, err
}

func sweepDir(ctx context.Context, dir string, age time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read dir %s: %w", dir, err)
	}

	cutoff := time.Now().Add(-age)
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if os.Remove(filepath.Join(dir, entry.Name())) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

func validateName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", errUnsafeName, name)
	}
	return nil
}
