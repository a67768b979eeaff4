// Copyright 2026 fanjia1024
// Credential source abstraction

package secrets

import (
	"context"
	"fmt"
)

// Store 凭证存储接口。协调 CLI 只要求凭证存在并可读取，
// 轮换、签发等密钥管理不在此层。
type Store interface {
	// Get 获取凭证值
	Get(ctx context.Context, key string) (string, error)

	// Set 设置凭证值
	Set(ctx context.Context, key string, value string) error

	// Delete 删除凭证
	Delete(ctx context.Context, key string) error

	// List 列出所有凭证 key
	List(ctx context.Context, prefix string) ([]string, error)
}

// Config 凭证来源配置
type Config struct {
	Provider string      `yaml:"provider"` // env | memory | vault | k8s
	Key      string      `yaml:"key"`      // 凭证 key：env 为变量名，vault 为前缀下的子路径
	Vault    VaultConfig `yaml:"vault"`
	K8s      K8sConfig   `yaml:"k8s"`
}

// NewStore 创建凭证 Store
func NewStore(config Config) (Store, error) {
	switch config.Provider {
	case "", "env":
		return NewEnvStore(), nil
	case "memory":
		return NewMemoryStore(), nil
	case "vault":
		return NewVaultStore(config.Vault)
	case "k8s":
		return NewK8sStore(config.K8s)
	default:
		return nil, fmt.Errorf("secrets: unsupported provider %q", config.Provider)
	}
}
