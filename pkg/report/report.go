// Package report turns a classified folder into a portable report and
// renders it as text, JSON, YAML or an HTML chart page.
package report

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/persist"
	"github.com/Sumatoshi-tech/compactor/pkg/version"
)

// ErrInvalidReport is returned when a saved report fails schema validation.
var ErrInvalidReport = errors.New("invalid report")

//go:embed schema.json
var schema string

// Report is the saved form of a folder classification.
type Report struct {
	Root        string            `json:"root"             yaml:"root"`
	GeneratedAt time.Time         `json:"generated_at"     yaml:"generated_at"`
	Version     string            `json:"version"          yaml:"version"`
	RunID       string            `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Totals      inventory.Summary `json:"totals"           yaml:"totals"`
	Buckets     Buckets           `json:"buckets"          yaml:"buckets"`
}

// Buckets lists the files of each bucket.
type Buckets struct {
	Compressible      []inventory.File `json:"compressible"       yaml:"compressible"`
	AlreadyCompressed []inventory.File `json:"already_compressed" yaml:"already_compressed"`
	Skipped           []inventory.File `json:"skipped"            yaml:"skipped"`
}

// New captures folder. runID may be empty.
func New(folder *inventory.Folder, runID string) *Report {
	return &Report{
		Root:        folder.Path,
		GeneratedAt: time.Now().UTC(),
		Version:     version.Version,
		RunID:       runID,
		Totals:      folder.Summary(),
		Buckets: Buckets{
			Compressible:      folder.Group(inventory.Compressible).Files(),
			AlreadyCompressed: folder.Group(inventory.AlreadyCompressed).Files(),
			Skipped:           folder.Group(inventory.Skipped).Files(),
		},
	}
}

// Folder rebuilds the inventory. Totals are recomputed from the files.
func (r *Report) Folder() *inventory.Folder {
	folder := inventory.NewFolder(r.Root)

	for _, b := range []struct {
		bucket inventory.Bucket
		files  []inventory.File
	}{
		{inventory.Compressible, r.Buckets.Compressible},
		{inventory.AlreadyCompressed, r.Buckets.AlreadyCompressed},
		{inventory.Skipped, r.Buckets.Skipped},
	} {
		for _, f := range b.files {
			folder.Push(b.bucket, f)
		}
	}

	return folder
}

// Save writes r as indented JSON to path.
func (r *Report) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}

	err = persist.NewJSONCodec().Encode(f, r)

	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if closeErr != nil {
		return fmt.Errorf("close report: %w", closeErr)
	}

	return nil
}

// Load reads and validates a JSON report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	return Parse(data)
}

// Parse validates data against the report schema and decodes it.
func Parse(data []byte) (*Report, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, verr := range result.Errors() {
			msgs = append(msgs, verr.String())
		}

		return nil, fmt.Errorf("%w: %s", ErrInvalidReport, strings.Join(msgs, "; "))
	}

	var r Report

	err = persist.NewJSONCodec().Decode(bytes.NewReader(data), &r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidReport, err)
	}

	r.Totals = r.Folder().Summary()

	return &r, nil
}
