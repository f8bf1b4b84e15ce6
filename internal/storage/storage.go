// Package storage provides the media upload backends. The backend is picked
// once at startup from configuration; both implementations are idempotent
// for repeated uploads of the same object name.
package storage

import (
	"fmt"
	"strings"

	"github.com/fr0stylo/linevault/internal/app/ports"
)

// Config selects and parameterizes a storage backend.
type Config struct {
	Type       string
	LocalDir   string
	SharePoint SharePointConfig
}

// New builds the configured storage backend.
func New(cfg Config) (ports.BlobStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "local":
		return NewLocal(cfg.LocalDir)
	case "sharepoint":
		return NewSharePoint(cfg.SharePoint)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
