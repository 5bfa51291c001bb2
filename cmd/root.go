// Package cmd provides the command-line interface for ndpsdecode.
package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/geekxflood/common/config"
	"github.com/geekxflood/common/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	version   = "dev" // Will be set by build flags
)

const schemaPath = "cmd/schemas/config.cue"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "ndpsdecode",
	Version: version,
	Short:   "NDPS attribute value and AgentX PDU decoder",
	Long: `ndpsdecode decodes Novell Distributed Print Services attribute values and
AgentX PDUs from hex dumps, raw captures and pcap files, and can run as a
service that watches a capture directory and serves decodes over HTTP.`,
	Example: `# Decode a hex dump as an attribute value
	ndpsdecode decode value.hex

	# Decode an inline hex string as an object identifier
	ndpsdecode decode --grammar oid --hex "00000000"

	# Decode the AgentX PDUs in a packet capture
	ndpsdecode pcap trace.pcap

	# Run the HTTP API, metrics and directory watcher
	ndpsdecode serve --config config.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json or text)")
}

// findConfigFile returns the --config path or the first default location
// that exists, or "" when there is none.
func findConfigFile() string {
	if cfgFile != "" {
		return cfgFile
	}

	defaultPaths := []string{
		"config.yaml",
		"config.yml",
		"/etc/ndpsdecode/config.yaml",
		"/etc/ndpsdecode/config.yml",
	}

	for _, path := range defaultPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func loadConfig() (config.Manager, error) {
	configPath := findConfigFile()

	manager, err := config.NewManager(config.Options{
		SchemaPath: schemaPath,
		ConfigPath: configPath,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	return manager, nil
}

// loadProvider loads the configuration for one-shot commands. Without a
// schema or config file on disk the built-in defaults apply.
func loadProvider() (config.Provider, func()) {
	manager, err := loadConfig()
	if err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "warning: %v, using defaults\n", err)
		}
		return defaultsProvider{}, func() {}
	}
	return manager.(config.Provider), func() { manager.Close() }
}

// newLogger builds the logger from the logging section, letting the
// --log-level and --log-format flags override it.
func newLogger(cfg config.Provider, defaultLevel string) (logging.Logger, error) {
	level, _ := cfg.GetString("logging.level", defaultLevel)
	format, _ := cfg.GetString("logging.format", "json")

	if logLevel != "" {
		level = logLevel
	}
	if logFormat != "" {
		format = logFormat
	}

	logger, _, err := logging.NewLogger(logging.Config{
		Level:  level,
		Format: format,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}

// defaultsProvider answers every lookup with the caller's default.
type defaultsProvider struct{}

func (defaultsProvider) GetString(path string, defaultValue ...string) (string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return "", fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetInt(path string, defaultValue ...int) (int, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetFloat(path string, defaultValue ...float64) (float64, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetBool(path string, defaultValue ...bool) (bool, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return false, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetDuration(path string, defaultValue ...time.Duration) (time.Duration, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return 0, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetStringSlice(path string, defaultValue ...[]string) ([]string, error) {
	if len(defaultValue) > 0 {
		return defaultValue[0], nil
	}
	return nil, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) GetMap(path string) (map[string]any, error) {
	return nil, fmt.Errorf("configuration key %s not set", path)
}

func (defaultsProvider) Exists(string) bool { return false }

func (defaultsProvider) Validate() error { return nil }
