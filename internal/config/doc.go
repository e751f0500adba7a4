// Package config loads the clickstorm configuration.
//
// Settings come from three sources, each overriding the one before:
//
//	┌─────────────────────────────┐
//	│  3. Command line overrides  │  ← Highest priority
//	├─────────────────────────────┤
//	│  2. CLICKSTORM_* variables  │
//	├─────────────────────────────┤
//	│  1. config.toml             │  ← ~/.config/clickstorm/config.toml
//	├─────────────────────────────┤
//	│  0. Built-in defaults       │  ← Lowest priority
//	└─────────────────────────────┘
//
// Every source is decoded strictly: an unknown key is an error rather than
// being ignored.
//
// # Environment Variables
//
// Variables map to dotted paths by section, so CLICKSTORM_PLAYBACK_MAX_STEPS
// sets playback.max_steps. Two short forms are also accepted:
//
//	CLICKSTORM_LOG_LEVEL  logging.level
//	CLICKSTORM_TIMELINE   paths.timeline
//
// # Sub-packages
//
//   - loader: TOML and environment decoding
//   - watcher: reload notifications for the configuration file
package config
