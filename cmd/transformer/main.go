// Command transformer is a small demo driver for the transformer package:
// it builds a randomly initialized encoder-decoder model from a YAML config
// (or defaults) and either describes its parameter layout or runs a toy
// decode over numeric token IDs.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/byteplume/transformer"
)

func main() {
	if err := NewCLI().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// NewCLI builds the command tree.
func NewCLI() *cobra.Command {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	rootCmd := &cobra.Command{
		Use:   "transformer",
		Short: "Encoder-decoder transformer demo",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SilenceUsage = true
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML model config (defaults used when empty)")
	rootCmd.PersistentFlags().String("backend", "", "matmul backend: gonum, gorgonia, or empty for builtin")

	describeCmd := &cobra.Command{
		Use:   "describe",
		Short: "Print the model's parameter layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := buildModel(cmd, logger)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Component", "Parameters"})
			for _, c := range model.ParamCounts() {
				table.Append([]string{c.Component, strconv.Itoa(c.Params)})
			}
			table.SetFooter([]string{"total", strconv.Itoa(model.NumParams())})
			table.Render()
			return nil
		},
	}

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Run a toy decode over comma-separated source token IDs",
		Long: `Run autoregressive decoding with randomly initialized weights.
The output is meaningless (the model is untrained); the point is exercising
the full encode/decode graph and the sampling options.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			model, err := buildModel(cmd, logger)
			if err != nil {
				return err
			}

			srcSpec, _ := cmd.Flags().GetString("src")
			src, err := parseTokenIDs(srcSpec)
			if err != nil {
				return err
			}

			maxTokens, _ := cmd.Flags().GetInt("max-tokens")
			temperature, _ := cmd.Flags().GetFloat64("temperature")
			topK, _ := cmd.Flags().GetInt("top-k")
			topP, _ := cmd.Flags().GetFloat64("top-p")
			seed, _ := cmd.Flags().GetInt64("seed")

			opts := transformer.GenerateOptions{
				StartToken:  1,
				EndToken:    -1,
				MaxTokens:   maxTokens,
				Temperature: temperature,
				TopK:        topK,
				TopP:        topP,
			}
			if cmd.Flags().Changed("seed") {
				opts.Seed = &seed
			}

			start := time.Now()
			out, err := model.Generate(src, opts)
			if err != nil {
				return err
			}
			logger.Info().
				Dur("elapsed", time.Since(start)).
				Int("generated", len(out)-1).
				Msg("decode finished")

			fmt.Println(formatTokenIDs(out))
			return nil
		},
	}
	decodeCmd.Flags().String("src", "1,2,3,4,5", "comma-separated source token IDs")
	decodeCmd.Flags().Int("max-tokens", 16, "maximum tokens to generate")
	decodeCmd.Flags().Float64("temperature", 0, "sampling temperature (0 = greedy)")
	decodeCmd.Flags().Int("top-k", 0, "top-k sampling (0 = disabled)")
	decodeCmd.Flags().Float64("top-p", 0, "top-p sampling (0 = disabled)")
	decodeCmd.Flags().Int64("seed", 0, "sampling seed (omit for non-deterministic)")

	rootCmd.AddCommand(describeCmd, decodeCmd)
	return rootCmd
}

// buildModel loads the config (YAML file or defaults), constructs the model,
// and wires the requested backend.
func buildModel(cmd *cobra.Command, logger zerolog.Logger) (*transformer.EncoderDecoder, error) {
	config := transformer.DefaultConfig()

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	start := time.Now()
	model := transformer.NewEncoderDecoder(config)
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int("d_model", config.DModel).
		Int("heads", config.NumHeads).
		Int("layers", config.NumLayers).
		Int("params", model.NumParams()).
		Msg("model initialized")

	switch name, _ := cmd.Flags().GetString("backend"); name {
	case "":
	case "gonum":
		model.SetBackend(transformer.NewGonumBackend())
	case "gorgonia":
		model.SetBackend(transformer.NewGorgoniaBackend())
	default:
		return nil, fmt.Errorf("unknown backend %q (want gonum or gorgonia)", name)
	}

	return model, nil
}

func parseTokenIDs(spec string) ([]int, error) {
	parts := strings.Split(spec, ",")
	ids := make([]int, 0, len(parts))
	for _, part := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid token ID %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func formatTokenIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}
