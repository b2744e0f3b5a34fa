package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/compactor/pkg/report"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
)

// defaultTop is how many of the largest compressible files the text report lists.
const defaultTop = 10

// reportOptions are the flags shared by commands that print a report.
type reportOptions struct {
	format string
	output string
	save   string
	top    int
}

func (o *reportOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, flagFormat, string(report.FormatText), "output format: text, json, yaml, plot")
	cmd.Flags().StringVarP(&o.output, flagOutput, "o", "", "write the report to this file instead of stdout")
	cmd.Flags().IntVar(&o.top, flagTop, defaultTop, "list this many of the largest compressible files (text format)")
}

func (o *reportOptions) registerSave(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.save, flagSave, "", "also save the report as JSON for later --input use")
}

// emit saves and prints r according to the flags.
func (o *reportOptions) emit(cmd *cobra.Command, r *report.Report, term terminal.Config, decimal bool) error {
	format, err := report.ParseFormat(o.format)
	if err != nil {
		return err
	}

	if o.save != "" {
		saveErr := r.Save(o.save)
		if saveErr != nil {
			return saveErr
		}
	}

	if o.output != "" {
		term.NoColor = true
	}

	opts := report.Options{Terminal: term, Decimal: decimal, Top: o.top}

	return writeTo(cmd.OutOrStdout(), o.output, func(w io.Writer) error {
		return report.Render(w, r, format, opts)
	})
}

// writeTo runs fn against path, or against stdout when path is empty.
func writeTo(stdout io.Writer, path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(stdout)
	}

	mkErr := os.MkdirAll(filepath.Dir(path), outputDirPerm)
	if mkErr != nil {
		return fmt.Errorf("create output dir: %w", mkErr)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	return errors.Join(fn(f), f.Close())
}

const outputDirPerm = 0o750
