// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/cvat2labelme/internal/bundle"
	"github.com/pdiddy/cvat2labelme/internal/convert"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// errConversionFailed makes the process exit non-zero after the report
// has been printed.
var errConversionFailed = errors.New("conversion failed")

var convertCmd = &cobra.Command{
	Use:   "convert <file.xml>",
	Short: "Convert a CVAT XML file to LabelMe JSON files",
	Long: `Convert reads a CVAT XML annotation file and writes one LabelMe JSON
file per image. Files go next to the XML file unless --output-dir is set, or
into a single ZIP archive with --zip.

Images without width and height attributes get their size from the image
file when --images-dir points at the images.`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "text" && format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q: want text, yaml or json", format)
	}
	zipPath, _ := cmd.Flags().GetString("zip")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Close()

	opts := []convert.Option{convert.WithLogger(log)}
	if cfg.Convert.ImagesDir != "" {
		opts = append(opts, convert.WithImageSizer(convert.DirSizer{Dir: cfg.Convert.ImagesDir}))
	}
	c := convert.New(opts...)

	// Structured output owns stdout; progress goes to stderr.
	var progress io.Writer = os.Stdout
	if format != "text" {
		progress = os.Stderr
	}

	if format == "text" {
		fmt.Fprintln(os.Stdout, "Starting CVAT XML to LabelMe JSON conversion...")
	}

	var report types.ConversionReport
	if zipPath != "" {
		report = bundle.ConvertFileToZip(c, args[0], zipPath, progress)
	} else {
		report = bundle.ConvertFile(c, args[0], cfg.Convert.OutputDir, progress)
	}

	if err := printReport(os.Stdout, report, format); err != nil {
		return err
	}
	if !report.Success {
		return errConversionFailed
	}
	return nil
}

func printReport(w io.Writer, report types.ConversionReport, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		return enc.Close()
	}

	if report.Success {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Conversion completed successfully!")
		fmt.Fprintln(w, report.Message)
		fmt.Fprintf(w, "Output: %s\n", report.Output)
		return nil
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Conversion failed!")
	fmt.Fprintf(w, "Error: %s\n", report.Message)
	return nil
}

func init() {
	convertCmd.Flags().String("output-dir", "", "directory for the JSON files (default: directory of the XML file)")
	convertCmd.Flags().String("zip", "", "write the JSON files into this ZIP archive instead of a directory")
	convertCmd.Flags().String("images-dir", "", "directory holding the images, used to fill in missing sizes")
	convertCmd.Flags().String("format", "text", "output format: text, yaml, or json")

	viper.BindPFlag("convert.output_dir", convertCmd.Flags().Lookup("output-dir"))
	viper.BindPFlag("convert.images_dir", convertCmd.Flags().Lookup("images-dir"))

	rootCmd.AddCommand(convertCmd)
}
