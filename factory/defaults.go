package factory

import (
	_ "embed"
)

//go:embed default_catalog.yaml
var defaultCatalogYAML []byte

// DefaultCatalogYAML returns the built-in catalog document.
func DefaultCatalogYAML() []byte {
	return append([]byte(nil), defaultCatalogYAML...)
}

// Default parses the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalogYAML)
}
