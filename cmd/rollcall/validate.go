package main

import (
	"fmt"

	"github.com/jpalmerr/rollcall"
	"github.com/jpalmerr/rollcall/config"
	"github.com/spf13/cobra"
)

// validateCmd validates a config file without starting the server.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate a rollcall configuration file without starting the server.

This command parses the YAML, expands environment variables, and validates
all fields including the seed classrooms. It's useful for CI/CD pipelines
or pre-deployment checks.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  rollcall validate -c config.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("config")
}

func runValidate(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// options carry their own checks, e.g. metrics path collisions
	if _, err := rollcall.New(config.BuildOptions(cfg)...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	students := 0
	for _, c := range cfg.Classrooms {
		students += len(c.Students)
	}

	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = cfg.Metrics.Path
	}

	origins := "any"
	if len(cfg.AllowedOrigins) > 0 {
		origins = fmt.Sprintf("%d allowed", len(cfg.AllowedOrigins))
	}

	fmt.Printf("Config is valid!\n")
	fmt.Printf("  Port:          %d\n", cfg.Port)
	fmt.Printf("  Write timeout: %s\n", cfg.WriteTimeout.Duration())
	fmt.Printf("  Send buffer:   %d\n", cfg.SendBuffer)
	fmt.Printf("  Origins:       %s\n", origins)
	fmt.Printf("  Metrics:       %s\n", metrics)
	fmt.Printf("  Classrooms:    %d (%d students)\n", len(cfg.Classrooms), students)

	return nil
}
