// Package main is the entry point for agenthost.
package main

import (
	"context"
	"os"
	"path/filepath"

	"charm.land/fang/v2"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "config.yaml"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "agenthost",
	Short: "Multi-tenant agent hosting runtime",
	Long: `agenthost hosts per-session agents backed by a pool of model-serving
providers. Sessions are created on first use and swept when idle; completion
requests are routed across providers with health-aware fallback.`,
}

func init() {
	// Global flags available to all subcommands
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file path (default: ./"+defaultConfigFile+" or ~/.config/agenthost/"+defaultConfigFile+")")
}

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// findConfigFile searches for config.yaml in default locations.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		p := filepath.Join(home, ".config", "agenthost", defaultConfigFile)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return defaultConfigFile // Default, will error if not found
}

// findConfigIn returns the config path inside dir if present, otherwise the
// bare default name.
func findConfigIn(dir string) string {
	p := filepath.Join(dir, defaultConfigFile)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return defaultConfigFile
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return findConfigFile()
}
