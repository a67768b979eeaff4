// Copyright 2026 fanjia1024
// Kubernetes mounted-secret credential store

package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// K8sConfig Kubernetes 配置。容器化 agent runner 在集群内跑 coord 时，
// tracker 凭证以挂载 secret 的形式出现。
type K8sConfig struct {
	// ServiceAccountPath 是 Kubernetes service account token 路径
	// 默认: /var/run/secrets/kubernetes.io/serviceaccount
	ServiceAccountPath string `yaml:"service_account_path"`

	// Namespace 是 pod 所在 namespace
	Namespace string `yaml:"namespace"`

	// SecretsPath 是额外 secret 挂载路径
	SecretsPath string `yaml:"secrets_path"`
}

type k8sStore struct {
	serviceAccountPath string
	secretsPath        string
	namespace          string
	mu                 sync.RWMutex
	cache              map[string]string
}

// NewK8sStore 创建 Kubernetes 凭证 store，从挂载的 secret 文件读取
func NewK8sStore(config K8sConfig) (Store, error) {
	saPath := "/var/run/secrets/kubernetes.io/serviceaccount"
	if config.ServiceAccountPath != "" {
		saPath = config.ServiceAccountPath
	}

	if _, err := os.Stat(saPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("secrets: kubernetes service account path not found: %s (not running in Kubernetes?)", saPath)
	}

	secretsPath := "/etc/secrets"
	if config.SecretsPath != "" {
		secretsPath = config.SecretsPath
	}

	namespace := "default"
	if config.Namespace != "" {
		namespace = config.Namespace
	}

	return &k8sStore{
		serviceAccountPath: saPath,
		secretsPath:        secretsPath,
		namespace:          namespace,
		cache:              make(map[string]string),
	}, nil
}

func (k *k8sStore) Get(ctx context.Context, key string) (string, error) {
	k.mu.RLock()
	if val, ok := k.cache[key]; ok {
		k.mu.RUnlock()
		return val, nil
	}
	k.mu.RUnlock()

	// 挂载目录优先，其次标准 secret 路径
	secretPath := filepath.Join(k.secretsPath, key)
	if data, err := os.ReadFile(secretPath); err == nil {
		value := strings.TrimSpace(string(data))
		k.mu.Lock()
		k.cache[key] = value
		k.mu.Unlock()
		return value, nil
	}

	k8sSecretPath := fmt.Sprintf("/run/secrets/kubernetes.io/%s/%s", k.namespace, key)
	if data, err := os.ReadFile(k8sSecretPath); err == nil {
		value := strings.TrimSpace(string(data))
		k.mu.Lock()
		k.cache[key] = value
		k.mu.Unlock()
		return value, nil
	}

	return "", fmt.Errorf("secrets: credential not found: %s", key)
}

func (k *k8sStore) Set(ctx context.Context, key string, value string) error {
	// 集群内 secret 对 pod 只读，Set 仅写进程内缓存
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cache[key] = value
	return nil
}

func (k *k8sStore) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.cache, key)
	return nil
}

func (k *k8sStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	if entries, err := os.ReadDir(k.secretsPath); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				key := e.Name()
				if prefix == "" || strings.HasPrefix(key, prefix) {
					keys = append(keys, key)
				}
			}
		}
	}

	return keys, nil
}
