package domain

import "time"

// SweepReport is the result of one read-only scan of the site directories.
type SweepReport struct {
	RanAt           time.Time `json:"ran_at"`
	OrphanedBackups []string  `json:"orphaned_backups"`
	DanglingLinks   []string  `json:"dangling_links"`
	Error           string    `json:"error,omitempty"`
}
