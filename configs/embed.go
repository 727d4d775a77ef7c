// Package configs embeds the configuration template written by
// `fuzzidx config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Defaults (internal/config NewConfig)
//  2. User config ($XDG_CONFIG_HOME/fuzzidx/config.yaml)
//  3. Project config (.fuzzidx.yaml)
//  4. FUZZIDX_* environment variables
package configs

import _ "embed"

// ProjectConfigTemplate is written to .fuzzidx.yaml in the project root.
// Every key is commented out except the example field list, so the
// defaults stay in charge until the user edits the file.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
