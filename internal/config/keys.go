package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key    string
	typ    keyType
	env    string
	def    any
	secret bool
	// apply copies the value into cfg. Secrets receive the raw env value,
	// everything else reads from v.
	apply   func(cfg *Config, v *viper.Viper, raw string)
	extract func(cfg Config) any
}

func envName(key string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func stringKey(key, def string, set func(*Config, string), get func(Config) string) keySpec {
	return keySpec{
		key: key, typ: kString, env: envName(key), def: def,
		apply:   func(cfg *Config, v *viper.Viper, _ string) { set(cfg, v.GetString(key)) },
		extract: func(cfg Config) any { return get(cfg) },
	}
}

func intKey(key string, def int, set func(*Config, int), get func(Config) int) keySpec {
	return keySpec{
		key: key, typ: kInt, env: envName(key), def: def,
		apply:   func(cfg *Config, v *viper.Viper, _ string) { set(cfg, v.GetInt(key)) },
		extract: func(cfg Config) any { return get(cfg) },
	}
}

func boolKey(key string, def bool, set func(*Config, bool), get func(Config) bool) keySpec {
	return keySpec{
		key: key, typ: kBool, env: envName(key), def: def,
		apply:   func(cfg *Config, v *viper.Viper, _ string) { set(cfg, v.GetBool(key)) },
		extract: func(cfg Config) any { return get(cfg) },
	}
}

func durationKey(key string, def time.Duration, set func(*Config, time.Duration), get func(Config) time.Duration) keySpec {
	return keySpec{
		key: key, typ: kDuration, env: envName(key), def: def,
		apply:   func(cfg *Config, v *viper.Viper, _ string) { set(cfg, v.GetDuration(key)) },
		extract: func(cfg Config) any { return get(cfg) },
	}
}

var specs = []keySpec{
	intKey("server.port", 4100,
		func(c *Config, v int) { c.Server.Port = v },
		func(c Config) int { return c.Server.Port }),
	stringKey("storage.data_dir", defaultDataDir(),
		func(c *Config, v string) { c.Storage.DataDir = v },
		func(c Config) string { return c.Storage.DataDir }),
	stringKey("log.level", "info",
		func(c *Config, v string) { c.Log.Level = v },
		func(c Config) string { return c.Log.Level }),
	stringKey("inference.native.url", "http://localhost:8000",
		func(c *Config, v string) { c.Inference.Native.URL = v },
		func(c Config) string { return c.Inference.Native.URL }),
	stringKey("inference.native.model", "native",
		func(c *Config, v string) { c.Inference.Native.Model = v },
		func(c Config) string { return c.Inference.Native.Model }),
	stringKey("inference.general.url", "http://localhost:8000",
		func(c *Config, v string) { c.Inference.General.URL = v },
		func(c Config) string { return c.Inference.General.URL }),
	stringKey("inference.general.model", "general",
		func(c *Config, v string) { c.Inference.General.Model = v },
		func(c Config) string { return c.Inference.General.Model }),
	durationKey("inference.timeout", 30*time.Second,
		func(c *Config, v time.Duration) { c.Inference.Timeout = v },
		func(c Config) time.Duration { return c.Inference.Timeout }),
	intKey("inference.breaker_failures", 5,
		func(c *Config, v int) { c.Inference.BreakerFailures = v },
		func(c Config) int { return c.Inference.BreakerFailures }),
	stringKey("translation.hub_lang", "spa_Latn",
		func(c *Config, v string) { c.Translation.HubLang = v },
		func(c Config) string { return c.Translation.HubLang }),
	intKey("translation.max_words", 150,
		func(c *Config, v int) { c.Translation.MaxWords = v },
		func(c Config) int { return c.Translation.MaxWords }),
	boolKey("translation.require_auth", false,
		func(c *Config, v bool) { c.Translation.RequireAuth = v },
		func(c Config) bool { return c.Translation.RequireAuth }),
	durationKey("translation.timeout", 90*time.Second,
		func(c *Config, v time.Duration) { c.Translation.Timeout = v },
		func(c Config) time.Duration { return c.Translation.Timeout }),
	durationKey("auth.token_ttl", 720*time.Hour,
		func(c *Config, v time.Duration) { c.Auth.TokenTTL = v },
		func(c Config) time.Duration { return c.Auth.TokenTTL }),
	{
		key: "auth.jwt_secret", typ: kString, env: envName("auth.jwt_secret"),
		secret:  true,
		apply:   func(cfg *Config, _ *viper.Viper, raw string) { cfg.Auth.JWTSecret = raw },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
}
