package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/patrolworks/inspection-service/config"
	apihttp "github.com/patrolworks/inspection-service/internal/http"
)

var (
	cfgFile   string
	serverURL string
	apiKey    string
	cfg       *config.Config
	logger    *zerolog.Logger
	client    *apihttp.Client
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "inspectctl",
	Short: "Inspection Service CLI - task queue and cart management tool",
	Long: `A CLI tool for operating the inspection service: managing the task
queue, inspecting recorded results and alerts, reading and updating cart
status, and controlling station lock sessions.`,
	PersistentPreRunE: persistentPreRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config/config.yaml or ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "base URL of the inspection service (default http://localhost:3000)")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "internal API key for protected endpoints (default $INTERNAL_API_KEY)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		// Config is optional for the CLI, don't fail here
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}
}

// persistentPreRun runs before each command and initializes dependencies
func persistentPreRun(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "help" || cmd.Name() == "completion" {
		return nil
	}

	// Always use console format for CLI
	logger = initLogger()

	if serverURL == "" {
		serverURL = os.Getenv("INSPECTION_SERVER_URL")
	}
	if serverURL == "" {
		serverURL = "http://localhost:3000"
	}
	if apiKey == "" {
		apiKey = os.Getenv("INTERNAL_API_KEY")
	}

	client = apihttp.NewClientDefault(serverURL, apiKey)
	return nil
}

func initLogger() *zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if cfg != nil && cfg.Logging.Level != "" {
		if parsedLevel, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			level = parsedLevel
		}
	}

	var output io.Writer
	if cfg != nil && cfg.Logging.Format == "json" {
		output = os.Stdout
	} else {
		noColor := false
		if cfg != nil {
			noColor = cfg.Logging.NoColor
		}
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: noColor}
	}

	log := zerolog.New(output).Level(level).With().Timestamp().Logger()
	return &log
}

func main() {
	if err := Execute(); err != nil {
		os.Exit(1)
	}
}
