// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ConversionStatus records what the conversion stage did with one document.
type ConversionStatus string

const (
	ConversionDone    ConversionStatus = "converted"
	ConversionFailed  ConversionStatus = "failed"
	ConversionSkipped ConversionStatus = "skipped"
)

// UploadStatus records the outcome of one blob upload.
type UploadStatus string

const (
	UploadDone   UploadStatus = "uploaded"
	UploadFailed UploadStatus = "failed"
)

// Document pairs a document identifier with the local file that holds it.
type Document struct {
	// ID is the identifier derived from the filename (e.g. "T-123-22" for
	// "T-123-22.rtf"). It is also the blob key in the remote store.
	ID string `json:"id" yaml:"id"`

	// Path is the absolute local path of the file.
	Path string `json:"path" yaml:"path"`
}
