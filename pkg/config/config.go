// Copyright 2026 fanjia1024
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"agent-coord/pkg/utils"
)

// Config 应用配置结构体（CLI 与 trackerd 共用，按段取用）
type Config struct {
	Tracker    TrackerConfig    `mapstructure:"tracker"`
	Identity   IdentityConfig   `mapstructure:"identity"`
	Activity   ActivityConfig   `mapstructure:"activity"`
	Tasks      TasksConfig      `mapstructure:"tasks"`
	Docs       DocsConfig       `mapstructure:"docs"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Service    ServiceConfig    `mapstructure:"service"`
	Log        LogConfig        `mapstructure:"log"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// TrackerConfig 远端会话跟踪服务客户端配置
type TrackerConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout string `mapstructure:"timeout"` // 单次请求超时，如 "30s"
}

// IdentityConfig 身份解析配置
type IdentityConfig struct {
	AgentKind     string `mapstructure:"agent_kind"`     // 留空时按环境标记自动识别
	ClientVersion string `mapstructure:"client_version"` // 上报的客户端版本，留空用构建默认
}

// ActivityConfig 活动采集配置
type ActivityConfig struct {
	TrunkBranches []string `mapstructure:"trunk_branches"` // 视为主干的分支名，默认 main/master
	GHBinary      string   `mapstructure:"gh_binary"`      // gh CLI 路径，默认 "gh"
}

// TasksConfig 本地任务清单配置
type TasksConfig struct {
	Manifest string `mapstructure:"manifest"` // 任务清单路径，默认 .coord/tasks/active.yaml
}

// DocsConfig 文档与注册表缓存配置
type DocsConfig struct {
	Type     string `mapstructure:"type"` // memory | file | redis
	Dir      string `mapstructure:"dir"`  // type=file 时的缓存目录
	Addr     string `mapstructure:"addr"` // type=redis 时的地址
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// SecretsConfig 凭证来源配置
type SecretsConfig struct {
	Provider string      `mapstructure:"provider"` // env | memory | vault | k8s
	Key      string      `mapstructure:"key"`      // 凭证 key：env 为变量名，vault 为前缀下的子路径
	Vault    VaultConfig `mapstructure:"vault"`
}

// VaultConfig Vault 凭证后端配置
type VaultConfig struct {
	Addr       string `mapstructure:"addr"`
	Token      string `mapstructure:"token"`       // 支持 ${ENV_VAR} 形式
	PathPrefix string `mapstructure:"path_prefix"` // 默认 secret
}

// ServiceConfig trackerd 服务配置
type ServiceConfig struct {
	Host      string           `mapstructure:"host"`
	Port      int              `mapstructure:"port"`
	Timeout   string           `mapstructure:"timeout"`
	Store     StoreConfig      `mapstructure:"store"`
	Auth      AuthConfig       `mapstructure:"auth"`
	RateLimit RateLimitConfig  `mapstructure:"rate_limit"`
	Sessions  SessionsConfig   `mapstructure:"sessions"`
	Ventures  []VentureConfig  `mapstructure:"ventures"`
	Docs      []ServiceDocItem `mapstructure:"docs"`
}

// StoreConfig 会话存储配置
type StoreConfig struct {
	Type string `mapstructure:"type"` // memory | postgres
	DSN  string `mapstructure:"dsn"`  // Postgres 连接串，type=postgres 时必填
}

// AuthConfig 静态凭证校验配置
type AuthConfig struct {
	Enable bool   `mapstructure:"enable"`
	Token  string `mapstructure:"token"` // 支持 ${ENV_VAR} 形式
}

// RateLimitConfig 按 agent 限流配置
type RateLimitConfig struct {
	Enable bool    `mapstructure:"enable"`
	QPS    float64 `mapstructure:"qps"`
	Burst  int     `mapstructure:"burst"`
}

// SessionsConfig 会话生命周期参数
type SessionsConfig struct {
	HeartbeatIntervalSeconds int    `mapstructure:"heartbeat_interval_seconds"` // 默认 900
	AbandonAfter             string `mapstructure:"abandon_after"`              // 无心跳判定放弃的时长，默认 "45m"
	SweepInterval            string `mapstructure:"sweep_interval"`             // 后台清扫周期，默认 "1m"
}

// VentureConfig 组织到 venture 代号的映射项
type VentureConfig struct {
	Org  string `mapstructure:"org"`
	Code string `mapstructure:"code"`
}

// ServiceDocItem sod 下发的工作文档
type ServiceDocItem struct {
	DocName string `mapstructure:"doc_name"`
	Path    string `mapstructure:"path"`  // 从文件读取内容
	Scope   string `mapstructure:"scope"` // venture | repo
	Version string `mapstructure:"version"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"` // stdout | stderr
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// TracingConfig 链路追踪配置（OpenTelemetry）
type TracingConfig struct {
	Enable         bool   `mapstructure:"enable"`
	ServiceName    string `mapstructure:"service_name"`
	ExportEndpoint string `mapstructure:"export_endpoint"`
	Insecure       bool   `mapstructure:"insecure"`
}

// PrometheusConfig Prometheus 配置
type PrometheusConfig struct {
	Enable bool `mapstructure:"enable"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("无法读取配置文件: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("无法解析配置文件: %w", err)
	}

	replaceEnvVars(&config)
	return &config, nil
}

// replaceEnvVars 替换配置中 ${ENV_VAR} 形式的敏感值
func replaceEnvVars(config *Config) {
	config.Service.Auth.Token = expandEnv(config.Service.Auth.Token)
	config.Secrets.Vault.Token = expandEnv(config.Secrets.Vault.Token)
	config.Docs.Password = expandEnv(config.Docs.Password)
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "$") {
		envVar := strings.TrimPrefix(strings.TrimSuffix(v, "}"), "${")
		if val := os.Getenv(envVar); val != "" {
			return val
		}
	}
	return v
}

// LoadCLIConfig 加载 CLI 配置。路径可用 COORD_CONFIG 覆盖，默认 ~/.coord/config.yaml；
// 文件缺失不视为错误，此时仅用环境变量与内置默认值。
func LoadCLIConfig() (*Config, error) {
	path := os.Getenv("COORD_CONFIG")
	if path == "" {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".coord", "config.yaml")
		}
	}

	cfg := &Config{}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			loaded, err := LoadConfig(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}
	ApplyCLIDefaults(cfg)
	return cfg, nil
}

// ApplyCLIDefaults 填充 CLI 侧默认值；环境变量优先于文件值
func ApplyCLIDefaults(cfg *Config) {
	cfg.Tracker.BaseURL = utils.CoalesceString(os.Getenv("COORD_TRACKER_URL"), cfg.Tracker.BaseURL, "http://localhost:8788")
	cfg.Tracker.Timeout = utils.CoalesceString(cfg.Tracker.Timeout, "30s")
	cfg.Secrets.Provider = utils.CoalesceString(cfg.Secrets.Provider, "env")
	cfg.Secrets.Key = utils.CoalesceString(cfg.Secrets.Key, "COORD_TOKEN")
	cfg.Tasks.Manifest = utils.CoalesceString(cfg.Tasks.Manifest, filepath.Join(".coord", "tasks", "active.yaml"))
	cfg.Docs.Type = utils.CoalesceString(cfg.Docs.Type, "file")
	if cfg.Docs.Dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Docs.Dir = filepath.Join(home, ".coord", "cache")
		} else {
			cfg.Docs.Dir = filepath.Join(".coord", "cache")
		}
	}
	if len(cfg.Activity.TrunkBranches) == 0 {
		cfg.Activity.TrunkBranches = []string{"main", "master"}
	}
	cfg.Activity.GHBinary = utils.CoalesceString(cfg.Activity.GHBinary, "gh")
	cfg.Log.Level = utils.CoalesceString(cfg.Log.Level, "warn")
	cfg.Log.Format = utils.CoalesceString(cfg.Log.Format, "text")
	cfg.Log.Output = utils.CoalesceString(cfg.Log.Output, "stderr")
}

// LoadTrackerdConfig 加载 trackerd 配置（仅 configs/trackerd.yaml）
func LoadTrackerdConfig() (*Config, error) {
	cfg, err := LoadConfig("configs/trackerd.yaml")
	if err != nil {
		return nil, err
	}
	ApplyTrackerdDefaults(cfg)
	return cfg, nil
}

// ApplyTrackerdDefaults 填充 trackerd 侧默认值
func ApplyTrackerdDefaults(cfg *Config) {
	cfg.Service.Host = utils.CoalesceString(cfg.Service.Host, "0.0.0.0")
	cfg.Service.Port = utils.DefaultInt(cfg.Service.Port, 8788)
	cfg.Service.Timeout = utils.CoalesceString(cfg.Service.Timeout, "30s")
	cfg.Service.Store.Type = utils.CoalesceString(cfg.Service.Store.Type, "memory")
	cfg.Service.Sessions.HeartbeatIntervalSeconds = utils.DefaultInt(cfg.Service.Sessions.HeartbeatIntervalSeconds, 900)
	cfg.Service.Sessions.AbandonAfter = utils.CoalesceString(cfg.Service.Sessions.AbandonAfter, "45m")
	cfg.Service.Sessions.SweepInterval = utils.CoalesceString(cfg.Service.Sessions.SweepInterval, "1m")
	if cfg.Service.RateLimit.Enable {
		if cfg.Service.RateLimit.QPS <= 0 {
			cfg.Service.RateLimit.QPS = 10
		}
		cfg.Service.RateLimit.Burst = utils.DefaultInt(cfg.Service.RateLimit.Burst, 20)
	}
	cfg.Log.Level = utils.CoalesceString(cfg.Log.Level, "info")
	cfg.Log.Format = utils.CoalesceString(cfg.Log.Format, "json")
	cfg.Log.Output = utils.CoalesceString(cfg.Log.Output, "stdout")
}
