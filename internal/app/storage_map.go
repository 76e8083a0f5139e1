package app

import (
	"guildmirror/internal/config"
	"guildmirror/internal/storage"
)

func mapStorageConfig(s config.StorageSettings) (storage.Config, bool) {
	switch s.Driver {
	case "", "none":
		return storage.Config{}, false
	}
	path := s.Path
	if path == "" {
		path = "./data/guildmirror.db"
	}
	return storage.Config{Driver: s.Driver, Path: path, BusyTimeout: s.BusyTimeout}, true
}
