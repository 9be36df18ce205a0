package scenario

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/hwcomposer/pkg/cache"
	"github.com/matzehuels/hwcomposer/pkg/errors"
)

// Config holds the defaults the CLI and the server read from a TOML file.
//
//	[cache]
//	dir = "/var/cache/hwcomposer"
//
//	[redis]
//	addr = "localhost:6379"
//	prefix = "hwc:"
//
//	[mongo]
//	uri = "mongodb://localhost:27017"
//
//	[server]
//	addr = ":8080"
type Config struct {
	Cache  CacheConfig        `toml:"cache"`
	Redis  cache.RedisOptions `toml:"redis"`
	Mongo  MongoConfig        `toml:"mongo"`
	Server ServerConfig       `toml:"server"`
}

// CacheConfig selects the local report cache.
type CacheConfig struct {
	Dir      string `toml:"dir"`
	Disabled bool   `toml:"disabled"`
}

// MongoConfig points at the report store. With an empty URI the CLI keeps
// reports in local files and the server keeps them in memory.
type MongoConfig struct {
	URI        string `toml:"uri"`
	Database   string `toml:"database"`
	Collection string `toml:"collection"`
}

// ServerConfig configures `hwcomposer serve`.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// DefaultConfig returns the settings used when no file is given.
func DefaultConfig() Config {
	return Config{
		Mongo:  MongoConfig{Database: "hwcomposer", Collection: "reports"},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// LoadConfig reads path over DefaultConfig. Keys the file leaves out keep
// their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, errors.New(errors.ErrCodeFileNotFound, "config file %s not found", path)
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, errors.New(errors.ErrCodeInvalidFormat, "config %s: unknown key %s", path, undecoded[0])
	}
	return cfg, cfg.Validate()
}

// Validate checks the backend addresses.
func (c Config) Validate() error {
	if c.Mongo.URI != "" {
		if err := errors.ValidateURL(c.Mongo.URI, "mongodb", "mongodb+srv"); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "mongo uri")
		}
	}
	if c.Cache.Dir != "" {
		if err := errors.ValidatePath(c.Cache.Dir); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidPath, err, "cache dir")
		}
	}
	return nil
}
