// Package config manages the regador user configuration file.
//
// The file is YAML and remembers controllers seen on the network (nickname,
// last address, last contact) together with dashboard preferences such as the
// sensor poll interval and the ThingSpeak channel that holds the watering
// history.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/regador/config.yaml or $HOME/.config/regador/config.yaml
//   - macOS: $HOME/.config/regador/config.yaml
//   - Windows: %LOCALAPPDATA%\regador\config.yaml
//
// Example:
//
//	version: 1
//	devices:
//	  regador-a1b2.local:
//	    nickname: horta
//	    last_ip: 192.168.0.42
//	preferences:
//	  poll_interval_ms: 1000
//	  auto_discover: true
//	  discover_timeout: 10
//	  history:
//	    channel_id: "1234567"
//	    read_key: ABCDEF
//
// The controller's own settings are never stored here; they live on the device.
package config
