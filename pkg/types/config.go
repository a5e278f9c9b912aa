package types

import "time"

// ConvertConfig holds settings for the convert command.
type ConvertConfig struct {
	// OutputDir is where JSON files are written. Empty means the directory
	// of the input XML file.
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// ImagesDir, when set, is searched for image files to fill in the size
	// of images that carry neither a width nor a height attribute.
	ImagesDir string `json:"images_dir" yaml:"images_dir" mapstructure:"images_dir"`
}

// ServeConfig holds settings for the web upload form.
type ServeConfig struct {
	// Addr is the listen address (default ":8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// MaxUploadBytes caps the size of an uploaded XML file (default 50 MiB).
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`

	// SessionTTL is how long an idle form session keeps its result (default 1h).
	SessionTTL time.Duration `json:"session_ttl" yaml:"session_ttl" mapstructure:"session_ttl"`

	// DownloadName is the file name offered for the ZIP download.
	DownloadName string `json:"download_name" yaml:"download_name" mapstructure:"download_name"`
}

// CacheConfig holds settings for the conversion result cache.
type CacheConfig struct {
	// Path is the SQLite database file. Empty keeps the cache in memory.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxEntries bounds the number of cached results; 0 means unbounded.
	MaxEntries int `json:"max_entries" yaml:"max_entries" mapstructure:"max_entries"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	// Dir, when set, receives info.log, warning.log and error.log in
	// addition to the console output.
	Dir string `json:"dir" yaml:"dir" mapstructure:"dir"`
}

// Config groups all settings read from the config file, the environment
// and command-line flags.
type Config struct {
	Convert ConvertConfig `json:"convert" yaml:"convert" mapstructure:"convert"`
	Serve   ServeConfig   `json:"serve" yaml:"serve" mapstructure:"serve"`
	Cache   CacheConfig   `json:"cache" yaml:"cache" mapstructure:"cache"`
	Log     LogConfig     `json:"log" yaml:"log" mapstructure:"log"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Serve: ServeConfig{
			Addr:           ":8080",
			MaxUploadBytes: 50 << 20,
			SessionTTL:     time.Hour,
			DownloadName:   "annotations.zip",
		},
	}
}
