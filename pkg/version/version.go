package version

import (
	"strings"

	_ "embed"
)

//go:embed VERSION
var raw string

// Get returns the build version
func Get() string {
	return strings.TrimSpace(raw)
}
