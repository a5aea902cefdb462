package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/personachat/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "personachat",
	Short: "Multi-provider chat backend with plugins and document retrieval",
	Long: `personachat serves a chat API that routes each turn through a plugin
chain, optional document retrieval and one of several LLM providers, and
keeps the conversation history in a SQL database.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "personachat.yml", "config file path")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}
