// Package config loads, normalizes, and validates spool's TOML
// configuration.
//
// Load resolves the config file (explicit path, ~/.config/spool/config.toml,
// or ./spool.toml), applies defaults, expands ~ in path fields, and pulls
// the playlist URL from SPOOL_PLAYLIST_URL when unset. Validation failures
// are fatal at startup; nothing else in the program revalidates settings.
package config
