package report

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/compactor/pkg/inventory"
	"github.com/Sumatoshi-tech/compactor/pkg/terminal"
	"github.com/Sumatoshi-tech/compactor/pkg/units"
)

const pathColumnMargin = 40

func writeText(w io.Writer, r *Report, o Options) error {
	size := func(n uint64) string { return units.Format(n, o.Decimal) }
	ratio := func(s inventory.GroupSummary) string {
		v := s.Ratio()
		return o.Terminal.Colorize(fmt.Sprintf("%.2f", v), terminal.ColorForRatio(v))
	}

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	tbl.AppendHeader(table.Row{"Bucket", "Files", "Logical", "On disk", "Ratio"})

	for _, b := range inventory.Buckets {
		s := r.Totals.Group(b)
		tbl.AppendRow(table.Row{b.String(), s.Count, size(s.LogicalSize), size(s.PhysicalSize), ratio(s)})
	}

	total := inventory.GroupSummary{
		Count:        r.Totals.Files(),
		LogicalSize:  r.Totals.LogicalSize,
		PhysicalSize: r.Totals.PhysicalSize,
	}
	tbl.AppendFooter(table.Row{"total", total.Count, size(total.LogicalSize), size(total.PhysicalSize), ratio(total)})

	_, err := fmt.Fprintf(w, "%s\n%s\n\nAlready reclaimed: %s\nCandidates for compression: %s in %d files\n",
		o.Terminal.Colorize(r.Root, terminal.ColorBlue),
		tbl.Render(),
		size(r.Totals.Saved()),
		size(r.Totals.Compressible.LogicalSize),
		r.Totals.Compressible.Count,
	)
	if err != nil {
		return err
	}

	if o.Top <= 0 || len(r.Buckets.Compressible) == 0 {
		return nil
	}

	return writeTop(w, r.Buckets.Compressible, o, size)
}

func writeTop(w io.Writer, files []inventory.File, o Options, size func(uint64) string) error {
	files = slices.Clone(files)
	slices.SortStableFunc(files, func(a, b inventory.File) int {
		return cmp.Compare(b.LogicalSize, a.LogicalSize)
	})
	files = files[:min(o.Top, len(files))]

	width := max(o.Terminal.Width-pathColumnMargin, pathColumnMargin)

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignRight}, {Number: 3, Align: text.AlignRight}})
	tbl.AppendHeader(table.Row{"#", "Largest compressible files", "Size"})

	for i, f := range files {
		tbl.AppendRow(table.Row{strconv.Itoa(i + 1), terminal.TruncateLeft(f.Path, width), size(f.LogicalSize)})
	}

	_, err := fmt.Fprintf(w, "\n%s\n", tbl.Render())

	return err
}
