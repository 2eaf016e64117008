package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"docquiz/internal/extract"
	"docquiz/internal/generator"
	"docquiz/internal/llm"
	"docquiz/internal/logger"
	"docquiz/internal/quiz"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a quiz from a document and write it as CSV",
	Long: `Extract the text of a document, generate questions with the configured
model and write them to a CSV file (or JSON with --json).

Use --out - to write to standard output.`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringP("file", "f", "", "Document to read: .pdf, .pptx or .txt (required)")
	generateCmd.Flags().IntP("count", "n", 0, "Number of questions (default from config)")
	generateCmd.Flags().StringP("out", "o", quiz.ExportFileName, "Output file, - for stdout")
	generateCmd.Flags().String("api-key", "", "API key for the configured provider")
	generateCmd.Flags().Bool("json", false, "Write JSON instead of CSV")
	_ = generateCmd.MarkFlagRequired("file")
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	file, _ := cmd.Flags().GetString("file")
	count, _ := cmd.Flags().GetInt("count")
	out, _ := cmd.Flags().GetString("out")
	apiKey, _ := cmd.Flags().GetString("api-key")
	asJSON, _ := cmd.Flags().GetBool("json")

	text, err := extract.ExtractFile(file)
	if err != nil {
		return err
	}

	providers := llm.NewFactory(cfg.LLM, log)
	if cfg.LLM.Provider == llm.ProviderMock {
		providers.Mock.Fallback = generator.DemoFallback
	}
	if !providers.HasKey(apiKey) {
		return fmt.Errorf("%w: pass --api-key or set it in the environment", llm.ErrMissingAPIKey)
	}

	ctx := cmd.Context()
	p, err := providers.New(ctx, apiKey)
	if err != nil {
		return fmt.Errorf("LLM provider: %w", err)
	}
	defer p.Close()

	svc := generator.NewService(cfg.Quiz, cfg.LLM, log)
	res, err := svc.Generate(ctx, p, text, count)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}

	w := cmd.OutOrStdout()
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := writeQuiz(w, res, asJSON); err != nil {
		return err
	}

	if out != "-" {
		log.Info("Quiz written", zap.String("file", out), zap.Int("questions", len(res.Items)))
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d questions to %s\n", len(res.Items), out)
	}
	return nil
}

func writeQuiz(w io.Writer, res *generator.Result, asJSON bool) error {
	if !asJSON {
		return quiz.WriteCSV(w, res.Items)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Items)
}
