package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/embedder"
)

var embedVector bool

func init() {
	embedCmd.Flags().BoolVar(&embedVector, "vector", false, "print the full vector as JSON")
	rootCmd.AddCommand(embedCmd)
}

var embedCmd = &cobra.Command{
	Use:   "embed <text>",
	Short: "Embed text with the configured provider",
	Long: `Embed one text with the configured embedding provider and report the
provider, model, dimension and latency. Useful for checking API keys and
endpoints before a full index build.

Examples:
  codeindex embed "parse a config file"
  CODEINDEX_EMBEDDER_PROVIDER=openai codeindex embed --vector "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		provider, err := embedder.New(cfg.ProviderConfig())
		if err != nil {
			return fmt.Errorf("failed to create embedder: %w", err)
		}
		engine := embedder.NewEngine(provider, embedder.WithCacheSize(1))
		defer func() { _ = engine.Close() }()

		start := time.Now()
		vec, err := engine.EmbedQuery(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if embedVector {
			return writeJSON(out, vec)
		}
		fmt.Fprintf(out, "Provider:  %s\n", provider.Provider())
		fmt.Fprintf(out, "Model:     %s\n", provider.Model())
		fmt.Fprintf(out, "Dimension: %d\n", len(vec))
		fmt.Fprintf(out, "Latency:   %s\n", time.Since(start).Round(time.Millisecond))
		n := len(vec)
		if n > 5 {
			n = 5
		}
		fmt.Fprintf(out, "Head:      %v\n", vec[:n])
		return nil
	},
}
