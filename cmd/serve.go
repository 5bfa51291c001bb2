package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/geekxflood/common/config"
	"github.com/spf13/cobra"

	"github.com/geekxflood/ndpsdecode/internal/app"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the decode API, metrics and directory watcher",
	Long: `Run ndpsdecode as a service: the HTTP decode API, the Prometheus metrics
and health endpoints, the decode history and, when app.enable_watch is set,
the capture directory watcher. Edits to the configuration file, or a SIGHUP,
reapply the decoder limits without a restart.`,
	Example: `# Start with the default config locations
	ndpsdecode serve

	# Start with a specific configuration file
	ndpsdecode serve --config /etc/ndpsdecode/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	manager, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer manager.Close()

	path := findConfigFile()
	if path == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), "No configuration file found, using schema defaults")
	} else {
		fmt.Fprintf(cmd.ErrOrStderr(), "Loading configuration from: %s\n", path)
	}

	provider := manager.(config.Provider)

	logger, err := newLogger(provider, "info")
	if err != nil {
		return err
	}

	application, err := app.NewApplication(provider, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	application.SetConfigManager(manager, path)

	if err := application.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	// SIGHUP reloads the configuration without a restart.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-hup:
				_ = application.Reload("sighup")
			}
		}
	}()

	return application.Run(ctx)
}
