package configlink

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gopasspw/gopass/pkg/debug"
)

// Linker wraps one config file on disk and provides load-mutate-flush
// convenience around the Document operations. The document is loaded fresh
// on every call; Linker keeps no state across invocations besides the file
// itself and the path of the last backup it wrote.
//
// Concurrent invocations against the same file are last-writer-wins, there
// is no locking.
type Linker struct {
	// Path of the config file, typically ~/.gitconfig.
	Path string
	// NoWrites prevents persisting changes to disk (e.g. for tests).
	NoWrites bool

	backup string
}

// New returns a Linker for the given config file path.
func New(path string) *Linker {
	return &Linker{Path: path}
}

// Load reads and parses the config file. A missing file is not an error,
// it yields an empty document so first-time setup needs no special case.
func (l *Linker) Load() (*Document, error) {
	buf, err := os.ReadFile(l.Path)
	if errors.Is(err, fs.ErrNotExist) {
		debug.V(1).Log("config %s does not exist, starting with an empty document", l.Path)

		return &Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", l.Path, err)
	}

	return ParseBytes(buf)
}

// AddInclude loads the config, ensures the mapping exists (see
// Document.AddInclude) and flushes the result. It reports whether an
// existing mapping was updated in place, so callers can avoid prompting
// twice for the same trigger directory.
func (l *Linker) AddInclude(triggerDir, profilePath string) (bool, error) {
	doc, err := l.Load()
	if err != nil {
		return false, err
	}

	updated := doc.AddInclude(triggerDir, profilePath)

	return updated, l.flush(doc)
}

// Prune removes every mapping whose trigger directory no longer exists and
// flushes the result if anything was removed. It returns the number of
// removed mappings.
func (l *Linker) Prune() (int, error) {
	doc, err := l.Load()
	if err != nil {
		return 0, err
	}

	removed := doc.RemoveMissing(dirExists)
	if removed == 0 {
		return 0, nil
	}

	return removed, l.flush(doc)
}

// Status loads the config and reports every mapping with existence checks
// on both the trigger directory and the profile file.
func (l *Linker) Status() ([]MappingStatus, error) {
	doc, err := l.Load()
	if err != nil {
		return nil, err
	}

	return doc.Check(dirExists, fileExists), nil
}

// BackupPath returns the path of the most recent backup written by this
// Linker, or an empty string if none was needed yet. Backups are never
// deleted by this package, on failure the last one is left in place so the
// user can diff or restore by hand.
func (l *Linker) BackupPath() string {
	return l.backup
}

// flush persists the document. Unchanged content is not rewritten. When the
// file content does change, the previous bytes are first copied to a
// timestamped sibling backup, then the new content is written to a temp
// file in the same directory and renamed over the original, so a failed
// write leaves the original untouched.
func (l *Linker) flush(doc *Document) error {
	if l.NoWrites || l.Path == "" {
		debug.V(3).Log("not writing changes to disk (NoWrites %t, path %q)", l.NoWrites, l.Path)

		return nil
	}

	out := doc.Serialize()

	prev, err := os.ReadFile(l.Path)
	switch {
	case err == nil:
		if bytes.Equal(prev, out) {
			debug.V(1).Log("config %s unchanged, not re-writing", l.Path)

			return nil
		}
		bp, err := writeBackup(l.Path, prev)
		if err != nil {
			return err
		}
		l.backup = bp
		debug.V(1).Log("backed up %s to %s", l.Path, bp)
	case errors.Is(err, fs.ErrNotExist):
		// nothing to back up
	default:
		return fmt.Errorf("failed to read config %s before writing: %w", l.Path, err)
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0o700); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrCreateConfigDir, filepath.Dir(l.Path), err)
	}

	if err := writeFileAtomic(l.Path, out); err != nil {
		return fmt.Errorf("%w: %s: %s", ErrWriteConfig, l.Path, err)
	}

	debug.V(1).Log("wrote config to %s", l.Path)

	return nil
}

// writeBackup copies buf to a timestamped sibling of path and returns the
// backup path. The suffix carries a counter in the (unlikely) case two
// backups land in the same second.
func writeBackup(path string, buf []byte) (string, error) {
	stamp := time.Now().Format("20060102-150405")
	bp := fmt.Sprintf("%s.bak.%s", path, stamp)
	for i := 1; ; i++ {
		if _, err := os.Lstat(bp); errors.Is(err, fs.ErrNotExist) {
			break
		}
		bp = fmt.Sprintf("%s.bak.%s.%d", path, stamp, i)
	}

	if err := os.WriteFile(bp, buf, 0o600); err != nil {
		return "", fmt.Errorf("%w: backup %s: %s", ErrWriteConfig, bp, err)
	}

	return bp, nil
}

// writeFileAtomic writes buf to a temp file next to path and renames it
// over path. On POSIX filesystems the rename is atomic, so readers see
// either the old or the new content, never a partial write.
func writeFileAtomic(path string, buf []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(buf); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())

		return err
	}

	return nil
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)

	return err == nil && fi.IsDir()
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)

	return err == nil && !fi.IsDir()
}
