// Package config loads murmur's configuration.
//
// # Resolution Order
//
//  1. Hardcoded defaults
//  2. The TOML file at the given path, or ~/.config/murmur/config.toml
//  3. A .env file in the working directory, if present (existing variables win)
//  4. MURMUR_API_URL, MURMUR_DATA_DIR and MURMUR_THEME
//
// A missing config file is not an error. Invalid TOML is.
//
// # Default Values
//
//   - api_url: http://localhost:4000
//   - data_dir: ~/.local/share/murmur
//   - request_timeout: 10 (seconds)
//   - requests_per_second: 10 (0 disables pacing)
//   - theme: Nightfox
//
// # TOML Format
//
//	api_url = "https://feed.example.com"
//	data_dir = "~/.local/share/murmur"
//	request_timeout = 15
//	requests_per_second = 5
//	theme = "Kanagawa"
//
// The data dir holds session.toml (persisted credential) and murmur.log.
package config
