// Package config loads the kvmswitch configuration.
//
// Settings are layered with viper, lowest precedence first:
//
//  1. built-in defaults (see Default)
//  2. the YAML config file
//  3. KVMSWITCH_* environment variables (log.level reads KVMSWITCH_LOG_LEVEL)
//  4. command-line flags that were explicitly set
//
// # Configuration File Location
//
// The file is read from the first of:
//   - the path given with --config
//   - $KVMSWITCH_CONFIG
//   - Linux: $XDG_CONFIG_HOME/kvmswitch/config.yaml or $HOME/.config/kvmswitch/config.yaml
//   - macOS: $HOME/.config/kvmswitch/config.yaml
//   - Windows: %LOCALAPPDATA%\kvmswitch\config.yaml
//
// A missing default file is not an error. The package never writes the file.
//
// # Example File
//
//	host: 192.168.1.10
//	port: 5000
//	timeout: 5s
//	port_count: 8
//	labels:
//	  "1": Workstation
//	  "2": Laptop
//	debounce: 150ms
//	log:
//	  level: debug
//	  file: /tmp/kvmswitch.log
//
// # Usage Example
//
//	cfg, err := config.Load(config.LoadOptions{Flags: cmd.Flags()})
//	if err != nil {
//	    return err
//	}
//	port, err := cfg.NewClient().GetSelectedPort()
package config
