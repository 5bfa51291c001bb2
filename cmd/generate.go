package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	outputFile string
	force      bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a sample configuration file",
	Long:  `Generate a sample configuration file for ndpsdecode with every section at its default.`,
	Example: `# Generate config to stdout
	ndpsdecode generate

	# Generate config to specific file
	ndpsdecode generate --output config.yaml

	# Overwrite existing file
	ndpsdecode generate --output config.yaml --force`,
	RunE: generateConfig,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (default: stdout)")
	generateCmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing file")
}

const sampleConfig = `# ndpsdecode configuration
# Every value below is the default; remove what you do not need to change.

app:
  name: "ndpsdecode"
  shutdown_timeout: "30s"
  stats_interval: "30s"
  enable_api: true
  enable_watch: false
  watch_grammar: ""          # empty: attribute-value, or agentx for pcap files

decoder:
  max_items: 100             # sequence elements kept per declared count
  max_depth: 16              # nested attribute levels before giving up
  max_varbinds: 100
  enable_storage: true
  store_trees: true
  workers: 4

render:
  format: "text"             # text or json

capture:
  file_extensions: [".hex", ".txt", ".bin", ".raw", ".pcap", ".pcapng"]
  ignore_patterns: [".*", "_*", "*.bak", "*.tmp"]
  max_file_size: 16777216
  agentx_port: 705
  recursive_scan: false

storage:
  database_type: "sqlite3"
  connection_string: "./ndpsdecode.db"
  max_connections: 10
  retention_days: 30
  cleanup_interval: "24h"
  enable_indexes: true
  retry:                     # retries writes refused with SQLITE_BUSY or SQLITE_LOCKED
    max_attempts: 3
    initial_delay: "25ms"
    max_delay: "1s"
    backoff_multiplier: 2.0
    jitter: 0.1
    breaker_threshold: 10    # consecutive failures before writes are skipped; 0 disables
    breaker_cooldown: "30s"

metrics:
  enabled: true
  listen_address: ":9090"
  metrics_path: "/metrics"
  health_path: "/health"
  ready_path: "/ready"
  update_interval: "30s"
  namespace: "ndpsdecode"

api:
  listen_address: ":8080"
  read_timeout: "10s"
  write_timeout: "10s"
  max_body_bytes: 1048576
  default_limit: 100

reload:                      # serve only; SIGHUP also triggers a reload
  enabled: true
  delay: "1s"
  validate_before_reload: true

watch:
  directory: "./captures"
  pattern: "*"
  debounce: "500ms"
  process_existing: false

logging:
  level: "info"
  format: "json"
`

func generateConfig(cmd *cobra.Command, args []string) error {
	if outputFile == "" {
		fmt.Fprint(cmd.OutOrStdout(), sampleConfig)
		return nil
	}

	if _, err := os.Stat(outputFile); err == nil && !force {
		return fmt.Errorf("file %s already exists, use --force to overwrite", outputFile)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := os.WriteFile(outputFile, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write configuration file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Configuration file generated: %s\n", outputFile)
	return nil
}
