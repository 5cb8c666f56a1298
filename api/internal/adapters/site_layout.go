package adapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/irgordon/hostpanel/api/internal/core/domain"
)

const defaultConfigMode fs.FileMode = 0o644

// SiteLayout maps site names onto the sites-available / sites-enabled pair.
type SiteLayout struct {
	available string
	enabled   string
}

var _ domain.SiteStore = (*SiteLayout)(nil)

func NewSiteLayout(available, enabled string) *SiteLayout {
	return &SiteLayout{
		available: absPath(available),
		enabled:   absPath(enabled),
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func (l *SiteLayout) AvailableDir() string { return l.available }
func (l *SiteLayout) EnabledDir() string   { return l.enabled }

func (l *SiteLayout) ConfigPath(name string) string {
	return filepath.Join(l.available, name)
}

func (l *SiteLayout) EnabledPath(name string) string {
	return filepath.Join(l.enabled, name)
}

func (l *SiteLayout) BackupPath(name string) string {
	return filepath.Join(l.available, name+domain.BackupSuffix)
}

func (l *SiteLayout) AvailableDirExists() bool {
	info, err := os.Stat(l.available)
	return err == nil && info.IsDir()
}

func (l *SiteLayout) Exists(name string) (bool, error) {
	_, err := os.Stat(l.ConfigPath(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (l *SiteLayout) Read(name string) ([]byte, error) {
	return os.ReadFile(l.ConfigPath(name))
}

// Write replaces the config in one rename so readers never see a partial file.
func (l *SiteLayout) Write(name string, data []byte) error {
	return writeAtomic(l.ConfigPath(name), data)
}

func (l *SiteLayout) Delete(name string) error {
	return os.Remove(l.ConfigPath(name))
}

func (l *SiteLayout) Backup(name string) error {
	data, err := os.ReadFile(l.ConfigPath(name))
	if err != nil {
		return fmt.Errorf("read config for backup: %w", err)
	}
	if err := writeAtomic(l.BackupPath(name), data); err != nil {
		return fmt.Errorf("write backup: %w", err)
	}
	return nil
}

// Restore copies the backup over the config. The backup itself is kept.
func (l *SiteLayout) Restore(name string) error {
	data, err := os.ReadFile(l.BackupPath(name))
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}
	if err := writeAtomic(l.ConfigPath(name), data); err != nil {
		return fmt.Errorf("restore config: %w", err)
	}
	return nil
}

func (l *SiteLayout) DiscardBackup(name string) error {
	err := os.Remove(l.BackupPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *SiteLayout) IsEnabled(name string) (bool, error) {
	_, err := os.Lstat(l.EnabledPath(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

func (l *SiteLayout) Enable(name string) error {
	return enableSite(l.ConfigPath(name), l.EnabledPath(name))
}

func (l *SiteLayout) Disable(name string) error {
	err := os.Remove(l.EnabledPath(name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *SiteLayout) Names() ([]string, error) {
	entries, err := os.ReadDir(l.available)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// OrphanedBackups lists backup files that outlived their transaction.
func (l *SiteLayout) OrphanedBackups() ([]string, error) {
	names, err := l.Names()
	if err != nil {
		return nil, err
	}

	var out []string
	for _, n := range names {
		if strings.HasSuffix(n, domain.BackupSuffix) {
			out = append(out, n)
		}
	}
	return out, nil
}

// DanglingLinks lists enabled entries whose target no longer exists.
func (l *SiteLayout) DanglingLinks() ([]string, error) {
	entries, err := os.ReadDir(l.enabled)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if _, err := os.Stat(filepath.Join(l.enabled, e.Name())); errors.Is(err, fs.ErrNotExist) {
			out = append(out, e.Name())
		}
	}
	sort.Strings(out)
	return out, nil
}

// IsTempName reports whether a directory entry is an in-flight write.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp")
}

func writeAtomic(path string, data []byte) error {
	mode := defaultConfigMode
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	dir, base := filepath.Split(path)
	tmpPath := filepath.Join(dir, "."+base+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, mode)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
