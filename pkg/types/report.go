// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// FailureKind classifies why a conversion failed.
type FailureKind string

const (
	FailureNone       FailureKind = ""
	FailureParse      FailureKind = "parse"
	FailureProcessing FailureKind = "processing"
	FailureIO         FailureKind = "io"
)

// ConversionReport is the outcome of converting one XML file to disk or to
// a ZIP archive.
type ConversionReport struct {
	// Success reports whether every output file was written.
	Success bool `json:"success" yaml:"success"`

	// Kind is set when Success is false.
	Kind FailureKind `json:"kind,omitempty" yaml:"kind,omitempty"`

	// Message is a human-readable summary, e.g. "Successfully converted 3 files".
	Message string `json:"message" yaml:"message"`

	// Source is the input XML path.
	Source string `json:"source" yaml:"source"`

	// Output is the directory or ZIP file that received the results.
	Output string `json:"output,omitempty" yaml:"output,omitempty"`

	// Files lists the written paths (or ZIP entry names) in output order.
	Files []string `json:"files" yaml:"files"`
}
