package main

import (
	"fmt"

	"docquiz/internal/extract"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Print the text extracted from a document",
	RunE:  runExtract,
}

func init() {
	extractCmd.Flags().StringP("file", "f", "", "Document to read: .pdf, .pptx or .txt (required)")
	extractCmd.Flags().Int("preview", 0, "Only print the first N characters")
	_ = extractCmd.MarkFlagRequired("file")
}

func runExtract(cmd *cobra.Command, _ []string) error {
	file, _ := cmd.Flags().GetString("file")
	preview, _ := cmd.Flags().GetInt("preview")

	text, err := extract.ExtractFile(file)
	if err != nil {
		return err
	}
	if preview > 0 {
		text = extract.Preview(text, preview)
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
