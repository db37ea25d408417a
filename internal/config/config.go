package config

import (
	"github.com/spf13/viper"

	"github.com/joestump/client-radar/internal/schema"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Defaults for keys that have one.
const (
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "console"
	DefaultPostLimit     = 200
	DefaultDecryptorName = "decrypt-engine"
	DefaultListenAddr    = "127.0.0.1:8080"
)

// Schema overrides the built-in resolver profile. Empty lists keep the
// defaults for that role.
type Schema struct {
	Tables         []string
	TableFallbacks []string
	IDColumns      []string
	TimeColumns    []string
	ContentColumns []string
}

// Config holds all runtime configuration for radar.
type Config struct {
	LogLevel      string
	LogFormat     string
	PostLimit     int
	DecryptorPath string
	DecryptorName string
	ListenAddr    string
	Schema        Schema
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_format", DefaultLogFormat)
	v.SetDefault("post_limit", DefaultPostLimit)
	v.SetDefault("decryptor_name", DefaultDecryptorName)
	v.SetDefault("listen_addr", DefaultListenAddr)
}

// Load reads configuration from the global viper instance, which merges flag
// values, RADAR_* env vars, the optional config file and defaults (set up by
// the cobra command in cmd/radar).
func Load() Config {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from v.
func LoadFrom(v *viper.Viper) Config {
	return Config{
		LogLevel:      v.GetString("log_level"),
		LogFormat:     v.GetString("log_format"),
		PostLimit:     v.GetInt("post_limit"),
		DecryptorPath: v.GetString("decryptor_path"),
		DecryptorName: v.GetString("decryptor_name"),
		ListenAddr:    v.GetString("listen_addr"),
		Schema: Schema{
			Tables:         v.GetStringSlice("schema.tables"),
			TableFallbacks: v.GetStringSlice("schema.table_fallbacks"),
			IDColumns:      v.GetStringSlice("schema.id_columns"),
			TimeColumns:    v.GetStringSlice("schema.time_columns"),
			ContentColumns: v.GetStringSlice("schema.content_columns"),
		},
	}
}

// Profile returns the resolver candidates and column roles, with the
// built-in lists used wherever the config leaves a list empty.
func (c Config) Profile() (schema.Candidates, schema.Roles) {
	cands := schema.DefaultPostCandidates()
	roles := schema.DefaultPostRoles()

	override := func(dst *[]string, src []string) {
		if len(src) > 0 {
			*dst = src
		}
	}
	override(&cands.Exact, c.Schema.Tables)
	override(&cands.Fallback, c.Schema.TableFallbacks)
	override(&roles.ID, c.Schema.IDColumns)
	override(&roles.Time, c.Schema.TimeColumns)
	override(&roles.Content, c.Schema.ContentColumns)
	return cands, roles
}
