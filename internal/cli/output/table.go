// Package output renders depotctl command results as tables.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that know how to lay themselves
// out as a table (a header row plus data rows).
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// PrintTable renders data to w as a borderless, left-aligned table.
func PrintTable(w io.Writer, data TableRenderer) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader(data.Headers())
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)

	for _, row := range data.Rows() {
		table.Append(row)
	}
	table.Render()
	return nil
}

// Rows is a TableRenderer built from a plain header/row slice.
type Rows struct {
	headers []string
	rows    [][]string
}

// NewRows creates a Rows with the given column headers.
func NewRows(headers ...string) *Rows {
	return &Rows{headers: headers}
}

// Add appends a data row.
func (r *Rows) Add(row ...string) {
	r.rows = append(r.rows, row)
}

func (r *Rows) Headers() []string { return r.headers }
func (r *Rows) Rows() [][]string  { return r.rows }
