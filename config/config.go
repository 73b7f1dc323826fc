package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"samplr/pkg/consts"
)

const configFilePath = "/etc/samplr/config.yaml"

var (
	samplrConf *SamplrConfModel
	PathPrefix string
)

func LoadConfig() (*SamplrConfModel, error) {
	filePath := configFilePath
	if fromEnv := os.Getenv("SAMPLR_CONFIG"); fromEnv != "" {
		filePath = fromEnv
	}

	if err := loadViperConfig(filePath); err != nil {
		return nil, err
	}

	return samplrConf, nil
}

func loadViperConfig(filePath string) error {
	viper.SetConfigFile(filePath)
	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading viper config: %w", err)
	}

	setEnvConf()
	setDefault()

	err = viper.Unmarshal(&samplrConf)
	if err != nil {
		return fmt.Errorf("error loading viper config to struct: %w", err)
	}

	if samplrConf.Mode != consts.ModeLocal {
		val, err := json.MarshalIndent(*samplrConf, "", "  ")
		if err == nil {
			fmt.Println(string(val))
		}
	}

	// /api/stage/v1
	PathPrefix, err = url.JoinPath(samplrConf.Server.APIPrefix, samplrConf.Mode, samplrConf.Server.APIVersion)
	if err != nil {
		return err
	}

	return nil
}

func setEnvConf() {
	viper.BindEnv("db.username", "SAMPLR_DB_USERNAME")
	viper.BindEnv("db.password", "SAMPLR_DB_PASSWORD")
	viper.BindEnv("db.host", "SAMPLR_DB_HOST")
	viper.BindEnv("firebase.path", "SAMPLR_FIREBASE_CREDENTIALS")
}

func setDefault() {
	viper.SetDefault("mode", "stage")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.api_prefix", "/api")
	viper.SetDefault("server.api_version", "v1")
	viper.SetDefault("db.keyspace", "samplr")
	viper.SetDefault("db.consistency", "quorum")
	viper.SetDefault("ledger.tier_catalog", consts.DefaultTierCatalog)
	viper.SetDefault("ledger.cas_retries", 8)
	viper.SetDefault("notifications.capacity", consts.NotificationLogCapacity)
	viper.SetDefault("notifications.push_timeout", "5s")
	viper.SetDefault("notifications.push_workers", 32)
}

// GetConfig returns env config
func GetConfig() *SamplrConfModel {
	return samplrConf
}

// SetConfig replaces the loaded config. Used by local tooling and tests.
func SetConfig(conf *SamplrConfModel) {
	samplrConf = conf
}

// PushTimeout parses notifications.push_timeout, falling back to 5s.
func (c *SamplrConfModel) PushTimeout() time.Duration {
	timeout, err := cast.ToDurationE(c.Notifications.PushTimeout)
	if err != nil || timeout <= 0 {
		return 5 * time.Second
	}
	return timeout
}
