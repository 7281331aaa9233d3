package export

import "fmt"

// Dataset is a titled table. Rows are positional and must match Headers in length.
type Dataset struct {
	Title    string
	Subtitle string
	Headers  []string
	Rows     [][]string
	// Widths are relative column weights for PDF output; empty means equal columns.
	Widths []float64
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	if len(d.Widths) > 0 && len(d.Widths) != len(d.Headers) {
		return fmt.Errorf("dataset has %d widths for %d headers", len(d.Widths), len(d.Headers))
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(d.Headers))
		}
	}
	return nil
}
