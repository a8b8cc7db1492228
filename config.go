// Package grantkit hosts application level configuration for the OAuth2
// lifecycle packages in this module.
//
// Sub-packages read their settings from the global Config instance, so an
// application can tune token lifetimes, the issuer, and storage without
// threading options through every constructor.
package grantkit

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/dpup/grantkit/internal/config"
)

// ConfigFile is the filename of the standard configuration file.
const ConfigFile = "grantkit.yaml"

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
//  1. Built-in defaults (in init())
//  2. Auto-discovered grantkit.yaml (in init())
//  3. Environment variables with GK__ prefix (in init())
//  4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - GK__OAUTH__ACCESS_TOKEN_EXPIRY → oauth.accessTokenExpiry
//   - GK__SERVER__ADDRESS → server.address
var Config = koanf.New(".")

func init() {
	if err := Config.Load(confmap.Provider(map[string]interface{}{
		// Bearer token lifetimes. The refresh token must outlive the access
		// token it is paired with.
		"oauth.accessTokenExpiry":  "168h",
		"oauth.refreshTokenExpiry": "336h",
		"oauth.authCodeExpiry":     "10m",
		"oauth.issuer":             "",
		"server.address":           "localhost:8000",
	}, "."), nil); err != nil {
		panic("error loading default config: " + err.Error())
	}

	// Look for a grantkit.yaml file in the current directory or any parent.
	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	// Load environment variables with the prefix GK__.
	if err := Config.Load(env.Provider("GK__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance. Call this before constructing services to load
// application-specific configuration.
func LoadConfigFile(path string) error {
	return Config.Load(file.Provider(path), yaml.Parser())
}

// LoadConfigDefaults merges a map of defaults into the global Config
// instance without overriding values that are already set.
func LoadConfigDefaults(defaults map[string]interface{}) error {
	merged := map[string]interface{}{}
	for k, v := range defaults {
		if !Config.Exists(k) {
			merged[k] = v
		}
	}
	return Config.Load(confmap.Provider(merged, "."), nil)
}
