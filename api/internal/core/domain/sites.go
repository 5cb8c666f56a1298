package domain

// SiteStore is the filesystem half of a proxy config: the available file,
// its transient backup and the enabling link.
type SiteStore interface {
	AvailableDirExists() bool
	Exists(name string) (bool, error)
	Read(name string) ([]byte, error)
	Write(name string, data []byte) error
	Delete(name string) error

	Backup(name string) error
	Restore(name string) error
	DiscardBackup(name string) error

	IsEnabled(name string) (bool, error)
	Enable(name string) error
	Disable(name string) error

	// Names lists regular entries of the available directory.
	Names() ([]string, error)
}
