package config

import (
	"embed"
)

// Store embeds the config files in the binary.
//
//go:embed chaingateway
var Store embed.FS
