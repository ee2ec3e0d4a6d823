package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/queelius/arkiv/internal/server"
	"github.com/queelius/arkiv/internal/watch"
	"github.com/queelius/arkiv/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "yaml"
	configFileExt  = "config.yaml"
	envPrefix      = "ARKIV"

	cfgKeyDatabase      = "database"
	cfgKeyMaxEnumValues = "max_enum_values"
	cfgKeyLogLevel      = "log_level"
	cfgKeyServeAddr     = "serve.addr"
	cfgKeyWatchDebounce = "watch.debounce"

	defaultLogLevel = "info"
)

// defaultConfigYAML is the content written to config.yaml on first run.
const defaultConfigYAML = `# arkiv configuration

# Database used by import and watch when --db is not given.
# database: archive.db

# Distinct values kept per metadata key before it is reported by example.
max_enum_values: 20

# debug, info, warn or error
log_level: info

serve:
  addr: 127.0.0.1:8765

watch:
  debounce: 400ms
`

// loadConfig reads config.yaml from configDir using Viper, creating the
// directory and a default config.yaml on first run. Settings can be
// overridden with ARKIV_* environment variables.
func loadConfig(configDir string) (*viper.Viper, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure config dir: %w", err)
	}
	if err := ensureDefaultConfigFile(configDir); err != nil {
		return nil, fmt.Errorf("ensure default config: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyMaxEnumValues, types.DefaultMaxEnumValues)
	v.SetDefault(cfgKeyLogLevel, defaultLogLevel)
	v.SetDefault(cfgKeyServeAddr, server.DefaultAddr)
	v.SetDefault(cfgKeyWatchDebounce, watch.DefaultDebounce)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	return v, nil
}

// ensureDefaultConfigFile creates a default config.yaml if the file does not
// exist in the config directory.
func ensureDefaultConfigFile(configDir string) error {
	path := filepath.Join(configDir, configFileExt)

	_, err := os.Stat(path)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("stat config file: %w", err)
	}
	return os.WriteFile(path, []byte(defaultConfigYAML), 0o644)
}

// maxEnumValues returns the configured cardinality threshold.
func (a *app) maxEnumValues() int {
	return a.config.GetInt(cfgKeyMaxEnumValues)
}

// debounce returns the configured watch debounce.
func (a *app) debounce() time.Duration {
	return a.config.GetDuration(cfgKeyWatchDebounce)
}
