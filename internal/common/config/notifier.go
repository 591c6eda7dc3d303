package config

type (
	// NotifierConfig represents the configuration for the cross-instance
	// event bridge. Type "none" (or empty) keeps broadcasts local to this
	// process; "redis" relays published events through a Redis stream so
	// connections on other instances receive them too.
	NotifierConfig struct {
		Type  string      `yaml:"type"`
		Redis RedisConfig `yaml:"redis"`
	}

	// RedisConfig represents the configuration for the Redis-based bridge
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Stream   string `yaml:"stream"`
	}
)
