package walletconfig

// WalletConfig is the root configuration loaded from config.toml with
// env-var overrides, mirroring the teacher's ApiConfig shape one subsystem
// struct at a time.
type WalletConfig struct {
	Network string `toml:"network" env:"SPARK_WALLET_NETWORK" env-default:"mainnet"`

	Database struct {
		Host            string `toml:"host" env:"SPARK_WALLET_DB_HOST"`
		Port            string `toml:"port" env:"SPARK_WALLET_DB_PORT" env-default:"5432"`
		User            string `toml:"user" env:"SPARK_WALLET_DB_USER"`
		Password        string `toml:"password" env:"SPARK_WALLET_DB_PASSWORD"`
		DB              string `toml:"db" env:"SPARK_WALLET_DB_NAME"`
		SslMode         string `toml:"ssl_mode" env:"SPARK_WALLET_DB_SSL_MODE" env-default:"disable"`
		MaxConns        int    `toml:"max_conns" env:"SPARK_WALLET_DB_MAX_CONNS" env-default:"25"`
		MinConns        int    `toml:"min_conns" env:"SPARK_WALLET_DB_MIN_CONNS" env-default:"5"`
		MaxConnLifetime int    `toml:"max_conn_lifetime" env:"SPARK_WALLET_DB_MAX_CONN_LIFETIME" env-default:"5"`
		MaxConnIdleTime int    `toml:"max_conn_idle_time" env:"SPARK_WALLET_DB_MAX_CONN_IDLE_TIME" env-default:"1"`
	} `toml:"database"`

	Redis struct {
		Host     string `toml:"host" env:"SPARK_WALLET_REDIS_HOST"`
		Port     string `toml:"port" env:"SPARK_WALLET_REDIS_PORT" env-default:"6379"`
		Password string `toml:"password" env:"SPARK_WALLET_REDIS_PASSWORD"`
		DB       int    `toml:"db" env:"SPARK_WALLET_REDIS_DB" env-default:"0"`
	} `toml:"redis"`

	Operators []OperatorEndpoint `toml:"operators"`

	SSP struct {
		BaseURL      string `toml:"base_url" env:"SPARK_WALLET_SSP_BASE_URL"`
		IdentityKey  string `toml:"identity_key" env:"SPARK_WALLET_SSP_IDENTITY_KEY"`
		RequestTimeoutMs int `toml:"request_timeout_ms" env:"SPARK_WALLET_SSP_TIMEOUT_MS" env-default:"15000"`
	} `toml:"ssp"`

	Signer struct {
		// SeedPath points at a file holding either a BIP39 mnemonic or a
		// serialized extended private key, selected by SeedFormat.
		SeedPath   string `toml:"seed_path" env:"SPARK_WALLET_SEED_PATH"`
		SeedFormat string `toml:"seed_format" env:"SPARK_WALLET_SEED_FORMAT" env-default:"mnemonic"`
	} `toml:"signer"`

	SyncIntervalMs int `toml:"sync_interval_ms" env:"SPARK_WALLET_SYNC_INTERVAL_MS" env-default:"5000"`
	LockTTLSeconds int `toml:"lock_ttl_seconds" env:"SPARK_WALLET_LOCK_TTL_SECONDS" env-default:"30"`
}

// OperatorEndpoint describes a single signing operator's network location.
type OperatorEndpoint struct {
	ID            string `toml:"id"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	TLSCertPath   string `toml:"tls_cert_path"`
	IsCoordinator bool   `toml:"is_coordinator"`
}
