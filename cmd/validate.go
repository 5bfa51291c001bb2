package cmd

import (
	"fmt"
	"os"

	"github.com/geekxflood/common/config"
	"github.com/spf13/cobra"

	"github.com/geekxflood/ndpsdecode/internal/capture"
	"github.com/geekxflood/ndpsdecode/internal/render"
)

var (
	checkCaptures bool
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and the capture directory",
	Long:  `Validate a configuration file against the schema and optionally check that the watched capture directory is readable.`,
	Example: `# Validate configuration file
	ndpsdecode validate --config config.yaml

	# Validate configuration and check the capture directory
	ndpsdecode validate --config config.yaml --check-captures

	# Validate using default config locations
	ndpsdecode validate`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&checkCaptures, "check-captures", false, "Also check the watch directory for capture files")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	configPath := findConfigFile()
	if configPath == "" {
		return fmt.Errorf("no configuration file found, specify with --config or create config.yaml")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating configuration file: %s\n", configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration file not found: %s", configPath)
	}

	manager, err := config.NewManager(config.Options{
		SchemaPath: schemaPath,
		ConfigPath: configPath,
	})
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	defer manager.Close()

	if err := manager.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	provider := manager.(config.Provider)

	if _, err := render.NewSink(render.FormatFromConfig(provider)); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	fmt.Fprintln(out, "✓ Configuration syntax is valid")

	if checkCaptures {
		count, dir, err := validateCaptureDirectory(provider)
		if err != nil {
			return fmt.Errorf("capture directory check failed: %w", err)
		}
		fmt.Fprintf(out, "  Found %d capture files in %s\n", count, dir)
		fmt.Fprintln(out, "✓ Capture directory is readable")
	}

	fmt.Fprintln(out, "✓ Configuration validation completed successfully")
	return nil
}

func validateCaptureDirectory(cfg config.Provider) (int, string, error) {
	dir, err := cfg.GetString("watch.directory")
	if err != nil {
		return 0, "", fmt.Errorf("watch.directory not found in configuration: %w", err)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return 0, dir, fmt.Errorf("capture directory is not accessible: %w", err)
	}
	if !info.IsDir() {
		return 0, dir, fmt.Errorf("%s is not a directory", dir)
	}

	loader, err := capture.NewLoader(cfg)
	if err != nil {
		return 0, dir, err
	}

	paths, err := loader.ScanDirectory(dir)
	if err != nil {
		return 0, dir, err
	}
	return len(paths), dir, nil
}
