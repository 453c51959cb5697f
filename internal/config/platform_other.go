//go:build !darwin

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return ""
}

func defaultDataDir() string {
	dir := dataHome()
	if dir == "" {
		return "trad-data"
	}
	return filepath.Join(dir, "trad")
}

func secretHint() string {
	return " or " + secretsFilePath()
}

// secretsFilePath holds {"service": {"account": "value"}}.
func secretsFilePath() string {
	return filepath.Join(dataHome(), "trad", "secrets.json")
}

func keychainLookup(service, account string) (string, error) {
	data, err := os.ReadFile(secretsFilePath())
	if err != nil {
		return "", fmt.Errorf("secret store not available: %w", err)
	}
	var secrets map[string]map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return "", fmt.Errorf("parsing secrets file: %w", err)
	}
	val, ok := secrets[service][account]
	if !ok {
		return "", fmt.Errorf("secret %s/%s not found", service, account)
	}
	return val, nil
}
