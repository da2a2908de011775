package stub

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/B0gdanovAleksandr/ayurveda-now/internal/api"
)

// Config configures the stub backend.
type Config struct {
	// Result, when set, is returned by every /analyze call instead of the
	// rule-based score.
	Result *api.AnalysisResult `yaml:"result" json:"result"`
	// Users are registered at startup.
	Users []User `yaml:"users" json:"users"`
	// Banner is the body of GET /.
	Banner string `yaml:"banner" json:"banner"`
	// BcryptCost is the password hashing cost.
	BcryptCost int `yaml:"bcrypt_cost" json:"bcrypt_cost"`
}

// User is a preregistered account.
type User struct {
	Email    string `yaml:"email" json:"email"`
	Password string `yaml:"password" json:"password"`
}

// DefaultBanner is the body of GET / unless configured.
const DefaultBanner = "Ayurveda Now Backend is running!"

// DefaultConfig returns a config with no users and rule-based scoring.
func DefaultConfig() *Config {
	return &Config{Banner: DefaultBanner, BcryptCost: bcrypt.DefaultCost}
}

// LoadConfig loads a stub configuration from a .yaml, .yml or .json file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Result != nil {
		if config.Result.DominantDosha == "" {
			return fmt.Errorf("result: dominant_dosha is required")
		}
		if !slices.Contains(doshas, config.Result.DominantDosha) {
			return fmt.Errorf("result: unknown dosha %q", config.Result.DominantDosha)
		}
	}
	seen := map[string]bool{}
	for i, u := range config.Users {
		if u.Email == "" || u.Password == "" {
			return fmt.Errorf("user %d: email and password are required", i)
		}
		if seen[u.Email] {
			return fmt.Errorf("user %d: duplicate email %s", i, u.Email)
		}
		seen[u.Email] = true
	}
	if config.BcryptCost != 0 && (config.BcryptCost < bcrypt.MinCost || config.BcryptCost > bcrypt.MaxCost) {
		return fmt.Errorf("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
