// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// IndexConfig holds settings for the corpus indexer.
type IndexConfig struct {
	// Root is the top of the folder tree holding the decisions.
	Root string `json:"root" yaml:"root"`

	// Delimiter truncates filenames into identifiers (default '.').
	Delimiter string `json:"delimiter" yaml:"delimiter"`
}

// CatalogMode selects how a reference catalog is flattened.
type CatalogMode string

const (
	// CatalogGoldLabels reads the "gold labels" list of every record.
	CatalogGoldLabels CatalogMode = "gold-labels"

	// CatalogFlatten accepts any mapping whose values are scalars or lists.
	CatalogFlatten CatalogMode = "flatten"
)

// CatalogConfig holds settings for the reference set loader.
type CatalogConfig struct {
	// Path is the catalog file (.json, .yaml or .yml). Empty disables filtering.
	Path string `json:"path" yaml:"path"`

	// Mode is gold-labels (default) or flatten.
	Mode CatalogMode `json:"mode" yaml:"mode"`
}

// ConversionBackend identifies the RTF-to-text tool.
type ConversionBackend string

const (
	BackendPandoc  ConversionBackend = "pandoc"
	BackendSoffice ConversionBackend = "soffice"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Backend selects the converter: pandoc (container) or soffice (editor automation).
	Backend ConversionBackend `json:"backend" yaml:"backend"`

	// OutputDir receives the converted .txt files.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// ErrorsDir receives files_not_processed.txt.
	ErrorsDir string `json:"errors_dir" yaml:"errors_dir"`

	// SourceExts lists the extensions handed to the converter (default [".rtf"]).
	SourceExts []string `json:"source_exts" yaml:"source_exts"`

	// Workers bounds concurrent conversions (default 1).
	Workers int `json:"workers" yaml:"workers"`

	// SofficeBin is the LibreOffice binary used by the soffice backend.
	SofficeBin string `json:"soffice_bin" yaml:"soffice_bin"`

	// RetryReport, when set, replaces the folder listing with the paths in a
	// previous run's failure report.
	RetryReport string `json:"retry_report" yaml:"retry_report"`
}

// SyncConfig holds settings for the blob sync stage.
type SyncConfig struct {
	// AccountURL is the storage account endpoint
	// (e.g. "https://corteconstitucional.blob.core.windows.net").
	AccountURL string `json:"account_url" yaml:"account_url"`

	// Container is the blob container name.
	Container string `json:"container" yaml:"container"`

	// CreateContainer creates the container before uploading when it is missing.
	CreateContainer bool `json:"create_container" yaml:"create_container"`

	// UseDevelopmentStorage targets a local Azurite emulator.
	UseDevelopmentStorage bool `json:"use_development_storage" yaml:"use_development_storage"`

	// Workers bounds concurrent uploads (default 1).
	Workers int `json:"workers" yaml:"workers"`

	// DryRun uploads into an in-memory store instead of the remote one.
	DryRun bool `json:"dry_run" yaml:"dry_run"`
}

// LedgerConfig holds settings for the run audit ledger.
type LedgerConfig struct {
	// Dir holds digesto.db. Empty disables the ledger.
	Dir string `json:"dir" yaml:"dir"`
}

// LogConfig holds diagnostic logging settings.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level" yaml:"level"`

	// Format is console or json.
	Format string `json:"format" yaml:"format"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Index      IndexConfig      `json:"index" yaml:"index"`
	Catalog    CatalogConfig    `json:"catalog" yaml:"catalog"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Sync       SyncConfig       `json:"sync" yaml:"sync"`
	Ledger     LedgerConfig     `json:"ledger" yaml:"ledger"`
	Log        LogConfig        `json:"log" yaml:"log"`

	// CopyDir, when set, receives a flat copy of the filtered documents.
	CopyDir string `json:"copy_dir" yaml:"copy_dir"`
}
