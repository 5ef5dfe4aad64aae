package model

import (
	_ "embed"
	"strings"
)

//go:embed help.md
var helpMD string

// Help returns the help text with the version filled in.
func Help() string {
	return strings.ReplaceAll(helpMD, "{{VERSION}}", Version)
}
