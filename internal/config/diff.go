package config

import "reflect"

// SummarizeChange lists the top-level sections that differ between two
// configs. Values are never included, so tokens stay out of the logs.
func SummarizeChange(oldCfg, newCfg *Config) []string {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var changed []string
	if !reflect.DeepEqual(oldCfg.Discord, newCfg.Discord) {
		changed = append(changed, "discord")
	}
	if !reflect.DeepEqual(oldCfg.Clone, newCfg.Clone) {
		changed = append(changed, "clone")
	}
	if !reflect.DeepEqual(oldCfg.Logging, newCfg.Logging) {
		changed = append(changed, "logging")
	}
	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		changed = append(changed, "storage")
	}
	if !reflect.DeepEqual(oldCfg.Notifier, newCfg.Notifier) {
		changed = append(changed, "notifier")
	}
	if !reflect.DeepEqual(oldCfg.Daemon, newCfg.Daemon) {
		changed = append(changed, "daemon")
	}
	return changed
}
