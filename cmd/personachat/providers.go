package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/suPer8Hu/personachat/internal/ai"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List configured providers and their models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg := ai.BuildRegistry(cmd.Context(), cfg)
		defer reg.Close()

		out := cmd.OutOrStdout()
		for _, name := range reg.Names() {
			p, err := reg.Get(name)
			if err != nil {
				return err
			}
			marker := " "
			if strings.EqualFold(name, cfg.DefaultProvider) {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s\n", marker, name)
			for _, m := range p.ListModels(cmd.Context()) {
				fmt.Fprintf(out, "    %s\n", m)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
}
