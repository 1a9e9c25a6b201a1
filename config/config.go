package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"bancornode/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress       string `toml:"RPCAddress"`
	MetricsAddress   string `toml:"MetricsAddress"`
	DataDir          string `toml:"DataDir"`
	NetworkName      string `toml:"NetworkName"`
	NodeKeystorePath string `toml:"NodeKeystorePath"`
	GenesisReserve   string `toml:"GenesisReserve"`
	RPCAuthTokenEnv  string `toml:"RPCAuthTokenEnv"`
	KeystorePassEnv  string `toml:"KeystorePassEnv"`
}

// Load loads the configuration from the given path, creating a default file
// (including a fresh node keystore) on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "bancor-local"
	}
	if strings.TrimSpace(cfg.RPCAuthTokenEnv) == "" {
		cfg.RPCAuthTokenEnv = "BANCOR_RPC_TOKEN"
	}
	if strings.TrimSpace(cfg.KeystorePassEnv) == "" {
		cfg.KeystorePassEnv = "BANCOR_KEYSTORE_PASS"
	}
	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}
	if err := validateReserve(cfg.GenesisReserve); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GenesisReserveAmount parses the configured reserve seed. An empty value
// means the node should not initialize the curve itself.
func (c *Config) GenesisReserveAmount() (*big.Int, bool, error) {
	trimmed := strings.TrimSpace(c.GenesisReserve)
	if trimmed == "" {
		return nil, false, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, false, fmt.Errorf("config: invalid GenesisReserve %q", c.GenesisReserve)
	}
	return amount, true, nil
}

func validateReserve(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return fmt.Errorf("config: invalid GenesisReserve %q", value)
	}
	return nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.NodeKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv(cfg.KeystorePassEnv)); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.NodeKeystorePath != keystorePath {
		cfg.NodeKeystorePath = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, os.Getenv("BANCOR_KEYSTORE_PASS")); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:       ":8545",
		MetricsAddress:   ":9464",
		DataDir:          "./bancor-data",
		NetworkName:      "bancor-local",
		NodeKeystorePath: keystorePath,
		GenesisReserve:   "",
		RPCAuthTokenEnv:  "BANCOR_RPC_TOKEN",
		KeystorePassEnv:  "BANCOR_KEYSTORE_PASS",
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "node.keystore")
}
