package config

// Logging configures the structured logger.
type Logging struct {
	Level      string `toml:"Level"`
	Env        string `toml:"Env"`
	FilePath   string `toml:"FilePath"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// RPC controls the JSON-RPC listener and its admission limits.
type RPC struct {
	Address            string  `toml:"Address"`
	JWTSecret          string  `toml:"JWTSecret"`
	JWTSecretEnv       string  `toml:"JWTSecretEnv"`
	JWTIssuer          string  `toml:"JWTIssuer"`
	RateLimitPerMinute float64 `toml:"RateLimitPerMinute"`
	Burst              int     `toml:"Burst"`
	MaxConnections     int     `toml:"MaxConnections"`
	IdempotencyDB      string  `toml:"IdempotencyDB"`
	ReadTimeoutSecs    int     `toml:"ReadTimeoutSecs"`
	WriteTimeoutSecs   int     `toml:"WriteTimeoutSecs"`
}

// Indexer configures the trade history database. An empty DSN keeps the
// indexer in an in-process SQLite file under the data directory.
type Indexer struct {
	Enabled bool   `toml:"Enabled"`
	DSN     string `toml:"DSN"`
}

// Telemetry configures OTLP trace and metric export.
type Telemetry struct {
	Enabled     bool    `toml:"Enabled"`
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	SampleRatio float64 `toml:"SampleRatio"`
}
