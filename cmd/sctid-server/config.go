package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ceyewan/sctid-kit/clog"
	"github.com/ceyewan/sctid-kit/idpool"
)

// envPrefix 环境变量前缀，例如 SCTID_POOL_CIS_URL
const envPrefix = "SCTID"

// Config 服务的完整配置
type Config struct {
	Env  string         `mapstructure:"env"`
	Addr string         `mapstructure:"addr"`
	Log  *clog.Config   `mapstructure:"log"`
	Pool *idpool.Config `mapstructure:"pool"`
}

// envKeys 允许通过环境变量覆盖的配置项
var envKeys = []string{
	"env",
	"addr",
	"log.level",
	"log.format",
	"log.output",
	"pool.capacity",
	"pool.refillThreshold",
	"pool.refillTrigger",
	"pool.maintenanceInterval",
	"pool.precreate",
	"pool.cis.url",
	"pool.cis.username",
	"pool.cis.password",
	"pool.cis.softwareName",
	"pool.cis.timeoutSeconds",
}

// loadConfig 依次应用环境默认值、YAML 文件和 SCTID_ 环境变量
func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetDefault("env", "production")
	v.SetDefault("addr", ":8080")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	env := v.GetString("env")
	config := &Config{
		Env:  env,
		Log:  clog.GetDefaultConfig(env),
		Pool: idpool.GetDefaultConfig(env),
	}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := config.Log.Validate(); err != nil {
		return nil, err
	}
	if err := config.Pool.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
