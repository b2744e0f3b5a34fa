package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Sumatoshi-tech/compactor/pkg/persist"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
)

// Format selects an output renderer.
type Format string

// Formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatPlot Format = "plot"
)

// ErrUnknownFormat is returned by ParseFormat and Render.
var ErrUnknownFormat = errors.New("unknown output format")

// Formats lists the accepted format names.
func Formats() []string {
	return []string{string(FormatText), string(FormatJSON), string(FormatYAML), string(FormatPlot)}
}

// ParseFormat validates s. An empty string selects text.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatText, nil
	case FormatText, FormatJSON, FormatYAML, FormatPlot:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
	}
}

// Options tune the text renderer.
type Options struct {
	Terminal terminal.Config
	Decimal  bool
	// Top lists the largest compressible files; zero disables the listing.
	Top int
}

// Render writes r to w in format f.
func Render(w io.Writer, r *Report, f Format, o Options) error {
	var err error

	switch f {
	case FormatText, "":
		err = writeText(w, r, o)
	case FormatJSON:
		err = persist.NewJSONCodec().Encode(w, r)
	case FormatYAML:
		err = persist.NewYAMLCodec().Encode(w, r)
	case FormatPlot:
		err = writePlot(w, r, o)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
	}

	if err != nil {
		return fmt.Errorf("render %s: %w", f, err)
	}

	return nil
}
