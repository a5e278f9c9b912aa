// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package bundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pdiddy/cvat2labelme/internal/convert"
	"github.com/pdiddy/cvat2labelme/pkg/types"
)

// ConvertFile converts the CVAT XML file at xmlPath and writes one JSON file
// per image into outDir. An empty outDir means the directory of xmlPath.
// Each written path is printed to w as "Saved: <path>".
//
// Nothing is written unless the whole document converts. The returned
// report carries the failure kind and a message for the caller to print.
func ConvertFile(c *convert.Converter, xmlPath, outDir string, w io.Writer) types.ConversionReport {
	if outDir == "" {
		outDir = filepath.Dir(xmlPath)
	}
	report := types.ConversionReport{Source: xmlPath, Output: outDir, Files: []string{}}

	res, err := convertPath(c, xmlPath)
	if err != nil {
		return failed(report, err)
	}

	written, err := WriteDir(outDir, res)
	for _, p := range written {
		fmt.Fprintf(w, "Saved: %s\n", p)
	}
	report.Files = append(report.Files, written...)
	if err != nil {
		return failed(report, err)
	}

	report.Success = true
	report.Message = fmt.Sprintf("Successfully converted %d files", len(written))
	return report
}

// ConvertFileToZip is like ConvertFile but packs the JSON files into the
// ZIP archive at zipPath. The report lists the archive entry names.
func ConvertFileToZip(c *convert.Converter, xmlPath, zipPath string, w io.Writer) types.ConversionReport {
	report := types.ConversionReport{Source: xmlPath, Output: zipPath, Files: []string{}}

	res, err := convertPath(c, xmlPath)
	if err != nil {
		return failed(report, err)
	}

	data, err := Zip(res)
	if err != nil {
		return failed(report, err)
	}
	if dir := filepath.Dir(zipPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failed(report, fmt.Errorf("creating %s: %w", dir, err))
		}
	}
	if err := os.WriteFile(zipPath, data, 0o644); err != nil {
		return failed(report, fmt.Errorf("writing %s: %w", zipPath, err))
	}

	report.Files = append(report.Files, res.Names()...)
	fmt.Fprintf(w, "Saved: %s (%d entries)\n", zipPath, res.Len())

	report.Success = true
	report.Message = fmt.Sprintf("Successfully converted %d files", res.Len())
	return report
}

func convertPath(c *convert.Converter, xmlPath string) (*convert.Result, error) {
	data, err := os.ReadFile(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", xmlPath, err)
	}
	return c.Convert(data)
}

// failed fills in the failure fields of report from err.
func failed(report types.ConversionReport, err error) types.ConversionReport {
	report.Success = false
	report.Kind = convert.Kind(err)
	if report.Kind == types.FailureParse {
		report.Message = fmt.Sprintf("Error parsing XML file: %v", err)
	} else {
		report.Message = fmt.Sprintf("Error processing file: %v", err)
	}
	return report
}
