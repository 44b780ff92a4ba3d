// Package config loads cadbridge configuration from YAML.
//
// # Overview
//
// A configuration file is optional. Load starts from Default and overlays
// the file, expanding environment variables first. The document is checked
// in two passes: a closed CUE schema rejects unknown keys and mistyped
// values, then struct tags are validated on the decoded Config.
//
// # File Structure
//
//	server:
//	  host: localhost
//	  port: 8765
//	  idle_timeout: 30s
//	client:
//	  host: localhost
//	  port: 8765
//	  dial_timeout: 5s
//	  timeout: 30s
//	  reconnect_delay: 5s
//	bridge:
//	  use_plugin_mode: true
//	  retry: false
//	  direct_commands: [get_design_info, get_component_hierarchy, create_sketch]
//	errors:
//	  max_history: 100
//	  summary_window: 1h
//	  policies:
//	    plugin_comm:
//	      max_retries: 5
//	activity:
//	  enabled: true
//	  path: ${HOME}/.cadbridge/activity.db
//	telemetry:
//	  logging:
//	    level: info
//
// Retry policy overrides are partial: fields left out keep the built-in
// value of that category.
//
// # Reloading
//
// Watch follows the file with fsnotify and hands every valid revision to a
// callback, debounced by 500ms.
package config
