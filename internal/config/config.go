// Package config loads the tunables behind every core component (cache
// capacities, batch thresholds, grouping timeout, worker pool size, ...)
// following the layered-precedence pattern of quantmind-br-gendocs'
// internal/config: defaults -> global user file -> project file ->
// environment -> explicit overrides.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds every tunable named in spec.md (§4.3, §4.4, §4.5, §4.7,
// §4.10, §4.10.1, §4.13) with the defaults the spec documents.
type Config struct {
	HashCacheCapacity     int `mapstructure:"hash_cache_capacity"`
	MetadataCacheCapacity int `mapstructure:"metadata_cache_capacity"`

	BatchMaxItems   int           `mapstructure:"batch_max_items"`
	BatchMaxWait    time.Duration `mapstructure:"batch_max_wait"`
	BatchMaxRetries int           `mapstructure:"batch_max_retries"`

	HashParallelThreshold int `mapstructure:"hash_parallel_threshold"`
	HashWorkerPoolSize    int `mapstructure:"hash_worker_pool_size"`
	HashChunkBytes        int `mapstructure:"hash_chunk_bytes"`

	UndoMaxSteps    int           `mapstructure:"undo_max_steps"`
	GroupingTimeout time.Duration `mapstructure:"grouping_timeout"`

	DriveScanInterval  time.Duration `mapstructure:"drive_scan_interval"`
	FolderDebounce     time.Duration `mapstructure:"folder_debounce"`
	MonitorResumeDelay time.Duration `mapstructure:"monitor_resume_delay"`

	ExternalToolIdleTimeout time.Duration `mapstructure:"external_tool_idle_timeout"`
	ExternalToolRetries     int           `mapstructure:"external_tool_retries"`
}

// Defaults returns the configuration with every value spec.md fixes or
// recommends as a default.
func Defaults() Config {
	return Config{
		HashCacheCapacity:     3000,
		MetadataCacheCapacity: 750,

		BatchMaxItems:   128,
		BatchMaxWait:    250 * time.Millisecond,
		BatchMaxRetries: 3,

		HashParallelThreshold: 16,
		HashWorkerPoolSize:    0, // 0 means derive from NumCPU at construction
		HashChunkBytes:        64 * 1024,

		UndoMaxSteps:    50,
		GroupingTimeout: 1500 * time.Millisecond,

		DriveScanInterval:  2 * time.Second,
		FolderDebounce:     500 * time.Millisecond,
		MonitorResumeDelay: 1 * time.Second,

		ExternalToolIdleTimeout: 30 * time.Second,
		ExternalToolRetries:     3,
	}
}

// Loader loads Config from the layered sources described in the package doc.
type Loader struct {
	v *viper.Viper
}

// NewLoader constructs a Loader seeded with Defaults and an environment
// prefix of RENAMECORE. It loads a .env file from the working directory
// if present, mirroring gendocs' config.NewLoader.
func NewLoader() *Loader {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RENAMECORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	def := Defaults()
	v.SetDefault("hash_cache_capacity", def.HashCacheCapacity)
	v.SetDefault("metadata_cache_capacity", def.MetadataCacheCapacity)
	v.SetDefault("batch_max_items", def.BatchMaxItems)
	v.SetDefault("batch_max_wait", def.BatchMaxWait)
	v.SetDefault("batch_max_retries", def.BatchMaxRetries)
	v.SetDefault("hash_parallel_threshold", def.HashParallelThreshold)
	v.SetDefault("hash_worker_pool_size", def.HashWorkerPoolSize)
	v.SetDefault("hash_chunk_bytes", def.HashChunkBytes)
	v.SetDefault("undo_max_steps", def.UndoMaxSteps)
	v.SetDefault("grouping_timeout", def.GroupingTimeout)
	v.SetDefault("drive_scan_interval", def.DriveScanInterval)
	v.SetDefault("folder_debounce", def.FolderDebounce)
	v.SetDefault("monitor_resume_delay", def.MonitorResumeDelay)
	v.SetDefault("external_tool_idle_timeout", def.ExternalToolIdleTimeout)
	v.SetDefault("external_tool_retries", def.ExternalToolRetries)

	return &Loader{v: v}
}

// Load reads the global (~/.renamecore.yaml), project (./.renamecore/config.yaml),
// and legacy TOML (./.renamecore/config.toml, via loadLegacyTOML) sources in
// that order, applies overrides, and decodes into a Config.
func (l *Loader) Load(projectDir string, overrides map[string]interface{}) (Config, error) {
	if err := l.loadGlobal(); err != nil {
		return Config{}, err
	}
	if err := l.loadProject(projectDir); err != nil {
		return Config{}, err
	}
	if err := l.loadLegacyTOML(projectDir); err != nil {
		return Config{}, err
	}
	for k, val := range overrides {
		if val != nil {
			l.v.Set(k, val)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) loadGlobal() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	path := filepath.Join(home, ".renamecore.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	l.v.SetConfigFile(path)
	return l.v.MergeInConfig()
}

func (l *Loader) loadProject(projectDir string) error {
	if projectDir == "" {
		projectDir = "."
	}
	path := filepath.Join(projectDir, ".renamecore", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	l.v.SetConfigFile(path)
	return l.v.MergeInConfig()
}
