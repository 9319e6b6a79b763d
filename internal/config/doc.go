// Package config handles configuration loading for pulselog.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from PULSELOG_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/pulselog/config.toml
//  3. ~/.config/pulselog/config.toml
//
// Files ending in .toml are TOML; any other extension is read as YAML.
//
// # Environment Variables
//
// Values can reference the environment with ${VAR_NAME}:
//
//	[matrix]
//	access_token = "${PULSELOG_MATRIX_TOKEN}"
//
// When matrix.access_token is still empty after expansion,
// PULSELOG_MATRIX_TOKEN is read directly, so the credential never has to
// be written into the file. PULSELOG_DB overrides database.path.
//
// # Example
//
//	[matrix]
//	homeserver = "https://matrix.example.org"
//	user_id = "@pulselog:example.org"
//	allowed_users = ["@alice:example.org"]
//
//	[database]
//	path = "/var/lib/pulselog/pulselog.db"
//
//	[capture]
//	idle_timeout = "30m"   # "0s" keeps unfinished entries forever
//
//	[bot]
//	language = "de"
//	timezone = "Europe/Berlin"
//	history_limit = 10
//
//	[logging]
//	level = "info"
//	format = "text"
package config
