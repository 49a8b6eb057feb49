package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// legacyConfig is the shape of a pre-migration .renamecore/config.toml,
// as produced by versions of the tool that predate the YAML/viper layer.
type legacyConfig struct {
	Cache struct {
		HashCapacity     int `toml:"hash_capacity"`
		MetadataCapacity int `toml:"metadata_capacity"`
	} `toml:"cache"`
	Batch struct {
		MaxItems  int `toml:"max_items"`
		MaxWaitMS int `toml:"max_wait_ms"`
	} `toml:"batch"`
	Undo struct {
		MaxSteps int `toml:"max_steps"`
	} `toml:"undo"`
}

// loadLegacyTOML migrates a one-time legacy config.toml (if present) into
// the viper store with Set, so its values take precedence over environment
// variables and the YAML files and only Load's explicit overrides replace
// them, then renames the file with a .migrated suffix so it is not re-applied.
func (l *Loader) loadLegacyTOML(projectDir string) error {
	if projectDir == "" {
		projectDir = "."
	}
	path := filepath.Join(projectDir, ".renamecore", "config.toml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	var legacy legacyConfig
	if _, err := toml.DecodeFile(path, &legacy); err != nil {
		return err
	}

	if legacy.Cache.HashCapacity > 0 {
		l.v.Set("hash_cache_capacity", legacy.Cache.HashCapacity)
	}
	if legacy.Cache.MetadataCapacity > 0 {
		l.v.Set("metadata_cache_capacity", legacy.Cache.MetadataCapacity)
	}
	if legacy.Batch.MaxItems > 0 {
		l.v.Set("batch_max_items", legacy.Batch.MaxItems)
	}
	if legacy.Batch.MaxWaitMS > 0 {
		l.v.Set("batch_max_wait", time.Duration(legacy.Batch.MaxWaitMS)*time.Millisecond)
	}
	if legacy.Undo.MaxSteps > 0 {
		l.v.Set("undo_max_steps", legacy.Undo.MaxSteps)
	}

	_ = os.Rename(path, path+".migrated")
	return nil
}
