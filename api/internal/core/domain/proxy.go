package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// BackupSuffix marks the transient copy kept while a config is being replaced.
const BackupSuffix = ".backup"

var siteNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ProxyDefinition is the user's intent for one reverse-proxy site.
// Only its rendered form is ever persisted.
type ProxyDefinition struct {
	Name        string `json:"name"`
	Domain      string `json:"domain"`
	Backend     string `json:"backend"`
	SSL         bool   `json:"ssl"`
	ExtraConfig string `json:"extra_config,omitempty"`
}

// ProxySummary is the read-only view recovered from a config on disk.
type ProxySummary struct {
	Name    string `json:"name"`
	Domain  string `json:"domain"`
	Backend string `json:"backend"`
	SSL     bool   `json:"ssl"`
	Enabled bool   `json:"enabled"`
}

// ProxyResult is returned by a committed create or update.
type ProxyResult struct {
	Name      string `json:"name"`
	Created   bool   `json:"created"`
	Message   string `json:"message"`
	HadBackup bool   `json:"-"`
}

// RemoveResult reports a delete. ReloadError is advisory only.
type RemoveResult struct {
	Name        string `json:"name"`
	Message     string `json:"message"`
	ReloadError string `json:"reload_error,omitempty"`
}

// ProxyListing is a directory projection plus any soft failure reading it.
type ProxyListing struct {
	Proxies []ProxySummary `json:"proxies"`
	Warning string         `json:"warning,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// ValidateSiteName rejects anything that is not a single safe path segment.
func ValidateSiteName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required")
	case len(name) > 255:
		return fmt.Errorf("name must be at most 255 characters")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is reserved", name)
	case !siteNamePattern.MatchString(name):
		return fmt.Errorf("name %q may only contain letters, digits, '.', '_' and '-'", name)
	case strings.HasSuffix(name, BackupSuffix):
		return fmt.Errorf("name must not end with %q", BackupSuffix)
	}
	return nil
}

// Validate checks the definition before anything touches the filesystem.
func (p *ProxyDefinition) Validate() error {
	if err := ValidateSiteName(p.Name); err != nil {
		return err
	}
	if err := validateDirectiveValue("domain", p.Domain); err != nil {
		return err
	}
	return validateDirectiveValue("backend", p.Backend)
}

// validateDirectiveValue keeps a value from closing or opening nginx statements.
func validateDirectiveValue(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !SafeDirectiveValue(value) {
		return fmt.Errorf("%s must not contain ';', '{', '}' or control characters", field)
	}
	return nil
}

// SafeDirectiveValue reports whether value can be spliced into a directive
// argument without ending or opening a statement.
func SafeDirectiveValue(value string) bool {
	if strings.ContainsAny(value, ";{}") {
		return false
	}
	for _, r := range value {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ProxyService is the lifecycle contract consumed by the HTTP layer.
type ProxyService interface {
	Upsert(ctx context.Context, def ProxyDefinition) (*ProxyResult, error)
	Update(ctx context.Context, name string, def ProxyDefinition) (*ProxyResult, error)
	Remove(ctx context.Context, name string) (*RemoveResult, error)
	List(ctx context.Context) ProxyListing
	Format(text string) (string, error)
	Lookup(ctx context.Context, name string) (*ProxySummary, error)
}
