package config

import "embed"

// defaultsFS embeds the default configuration.
//
//go:embed defaults.yml
var defaultsFS embed.FS

const defaultsFile = "defaults.yml"
