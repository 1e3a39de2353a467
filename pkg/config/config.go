// Package config loads runtime configuration for the kubefix server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type KubernetesConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig"`
}

type PrometheusConfig struct {
	// URL overrides service auto-detection when set.
	URL       string `mapstructure:"url"`
	Namespace string `mapstructure:"namespace"`
}

type ScanConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
}

type LLMConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
}

type TerraformConfig struct {
	Binary  string        `mapstructure:"binary"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Scan       ScanConfig       `mapstructure:"scan"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Terraform  TerraformConfig  `mapstructure:"terraform"`
}

// Load reads configuration from an optional file, overridable through
// KUBEFIX_* environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("kubernetes.kubeconfig", "")
	v.SetDefault("prometheus.url", "")
	v.SetDefault("prometheus.namespace", "")
	v.SetDefault("scan.interval", time.Minute)
	v.SetDefault("scan.error_backoff", 5*time.Second)
	v.SetDefault("llm.provider", "")
	v.SetDefault("llm.model", "")
	v.SetDefault("terraform.binary", "terraform")
	v.SetDefault("terraform.timeout", 10*time.Minute)

	v.SetEnvPrefix("KUBEFIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}
