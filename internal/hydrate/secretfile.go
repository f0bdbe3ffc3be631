// File: internal/hydrate/secretfile.go
// Brief: Per-environment secret file schema.

package hydrate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DatabaseSecrets holds the master database credentials pushed to the cloud
// secret store during the secret-sync step.
type DatabaseSecrets struct {
	MasterUsername string `yaml:"master_username" json:"username"`
	MasterPassword string `yaml:"master_password" json:"password"`
}

// SecretFile is the never-committed per-environment secret document. Only
// ConfigSecrets feeds placeholder hydration; the other sections belong to the
// secret-sync side steps.
type SecretFile struct {
	Database                 DatabaseSecrets   `yaml:"database"`
	GitHubEnvironmentSecrets map[string]string `yaml:"github_environment_secrets"`
	ConfigSecrets            map[string]string `yaml:"config_secrets"`
}

// LoadSecretFile reads and decodes a secret file.
func LoadSecretFile(path string) (*SecretFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read secret file: %w", err)
	}
	var sf SecretFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return nil, fmt.Errorf("secret file %s: %w", path, err)
	}
	return &sf, nil
}
