package config

type SamplrConfModel struct {
	LogLevel      string        `mapstructure:"log_level"`
	Mode          string        `mapstructure:"mode"`
	Server        Server        `mapstructure:"server"`
	DB            DB            `mapstructure:"db"`
	Firebase      Firebase      `mapstructure:"firebase"`
	Ledger        Ledger        `mapstructure:"ledger"`
	Notifications Notifications `mapstructure:"notifications"`
}

type Server struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	APIPrefix  string `mapstructure:"api_prefix"`
	APIVersion string `mapstructure:"api_version"`
}

type DB struct {
	Host        string `mapstructure:"host"`
	Keyspace    string `mapstructure:"keyspace"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	Consistency string `mapstructure:"consistency"`
}

type Firebase struct {
	Path string `mapstructure:"path"`
}

type Ledger struct {
	// TierCatalog is the partition of the tier table read on every accrual.
	TierCatalog string `mapstructure:"tier_catalog"`
	CASRetries  int    `mapstructure:"cas_retries"`
}

type Notifications struct {
	Capacity    int    `mapstructure:"capacity"`
	PushTimeout string `mapstructure:"push_timeout"`
	PushWorkers int    `mapstructure:"push_workers"`
}
