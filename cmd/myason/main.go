package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thierrydecker/myason/internal/agent"
	"github.com/thierrydecker/myason/internal/collector"
	"github.com/thierrydecker/myason/internal/config"
	"github.com/thierrydecker/myason/internal/ifconfig"
	"github.com/thierrydecker/myason/internal/logger"
	"github.com/thierrydecker/myason/internal/version"
	"github.com/thierrydecker/myason/internal/wire"
)

func main() {
	root := &cobra.Command{
		Use:           "myason",
		Short:         "Network flow telemetry pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(agentCommand())
	root.AddCommand(collectorCommand())
	root.AddCommand(ifconfigCommand())
	root.AddCommand(keygenCommand())
	root.AddCommand(versionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func agentCommand() *cobra.Command {
	var confPath, loggerConfPath string

	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Capture packets and export aggregated flows",
		RunE: func(cmd *cobra.Command, args []string) error {
			boot := bootstrapLogger()
			boot.Info("Beginning agent configuration sanity checks...")

			logCfg, err := config.LoadLogger(loggerConfPath)
			if err != nil {
				boot.Error("Agent logger configuration check failed", "error", err)
				return err
			}
			cfg, err := config.LoadAgent(confPath)
			if err != nil {
				boot.Error("Agent configuration check failed", "error", err)
				return err
			}
			if err := cfg.Validate(ifconfig.Exists); err != nil {
				boot.Error("Agent configuration check failed", "error", err)
				return err
			}
			boot.Info("Agent configuration checks passed...")
			boot.Info("Starting the agent...")

			log, err := logger.NewLogger(logCfg.LoggerSettings())
			if err != nil {
				boot.Error("Failed to initialize logger", "error", err)
				return err
			}
			defer log.Close()

			a, err := agent.New(cfg, log)
			if err != nil {
				boot.Error("Failed to build the agent pipeline", "error", err)
				return err
			}
			if err := a.Start(); err != nil {
				boot.Error("Failed to start the agent", "error", err)
				return err
			}

			waitForInterrupt()
			a.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&confPath, "agent-conf", "agent.yml", "path to the agent configuration file")
	cmd.Flags().StringVar(&loggerConfPath, "agent-logger-conf", "agent_logger.yml", "path to the agent logger configuration file")
	return cmd
}

func collectorCommand() *cobra.Command {
	var confPath, loggerConfPath string

	cmd := &cobra.Command{
		Use:   "collector",
		Short: "Receive, decode and persist flow records",
		RunE: func(cmd *cobra.Command, args []string) error {
			boot := bootstrapLogger()
			boot.Info("Beginning collector configuration sanity checks...")

			logCfg, err := config.LoadLogger(loggerConfPath)
			if err != nil {
				boot.Error("Collector logger configuration check failed", "error", err)
				return err
			}
			cfg, err := config.LoadCollector(confPath)
			if err != nil {
				boot.Error("Collector configuration check failed", "error", err)
				return err
			}
			if err := cfg.Validate(); err != nil {
				boot.Error("Collector configuration check failed", "error", err)
				return err
			}
			boot.Info("Collector configuration checks passed...")
			boot.Info("Starting the collector...")

			log, err := logger.NewLogger(logCfg.LoggerSettings())
			if err != nil {
				boot.Error("Failed to initialize logger", "error", err)
				return err
			}
			defer log.Close()

			c, err := collector.New(cfg, log)
			if err != nil {
				boot.Error("Failed to build the collector pipeline", "error", err)
				return err
			}
			if err := c.Start(); err != nil {
				boot.Error("Failed to start the collector", "error", err)
				return err
			}

			waitForInterrupt()
			c.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&confPath, "collector-conf", "collector.yml", "path to the collector configuration file")
	cmd.Flags().StringVar(&loggerConfPath, "collector-logger-conf", "collector_logger.yml", "path to the collector logger configuration file")
	return cmd
}

func ifconfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ifconfig",
		Short: "List the host's capture-capable adapters",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := ifconfig.Adapters()
			if err != nil {
				return err
			}
			fmt.Println("\nAvailable adapters on the system:")
			fmt.Println()
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		},
	}
}

func keygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a shared key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := wire.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Printf("Generated key: %s\n", key)
			fmt.Println("Keep your secret, secret!")
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the application version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("myason version %s\n", version.GetVersion())
		},
	}
}

// bootstrapLogger reports startup failures before the configured
// logging backend exists.
func bootstrapLogger() *logger.Logger {
	log, _ := logger.NewLogger(&logger.Config{
		Console: logger.ConsoleConfig{Enabled: true, Level: "info", Format: "text"},
	})
	return log
}

func waitForInterrupt() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
}
