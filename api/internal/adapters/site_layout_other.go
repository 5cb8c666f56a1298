//go:build !unix

package adapters

import "os"

// Without symlinks the enabled entry is a marker file holding the target path.
func enableSite(target, link string) error {
	f, err := os.OpenFile(link, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(target + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
