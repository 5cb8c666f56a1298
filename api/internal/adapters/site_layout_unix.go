//go:build unix

package adapters

import "os"

func enableSite(target, link string) error {
	return os.Symlink(target, link)
}
