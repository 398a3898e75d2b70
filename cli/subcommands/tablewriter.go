// Copyright (c) Qualcomm Technologies, Inc. and/or its subsidiaries.
// SPDX-License-Identifier: BSD-3-Clause-Clear

package subcommands

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
)

// TableWriter renders aligned column output for list subcommands. Cells may
// contain newlines; continuation lines stay within their column.
type TableWriter struct {
	headers []string
	rows    [][]string
}

func NewTableWriter(headers []string) *TableWriter {
	return &TableWriter{headers: headers}
}

func (t *TableWriter) AddRow(columns ...any) {
	row := make([]string, len(columns))
	for i, col := range columns {
		row[i] = fmt.Sprintf("%v", col)
	}
	t.rows = append(t.rows, row)
}

func (t *TableWriter) Render() {
	if len(t.headers) == 0 {
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(t.headers, "\t"))

	for _, row := range t.rows {
		for _, line := range splitRowLines(row, len(t.headers)) {
			fmt.Fprintln(w, strings.Join(line, "\t"))
		}
	}
	w.Flush()
}

// splitRowLines expands a row with multiline cells into one output line per
// cell line, padding the other columns with blanks.
func splitRowLines(row []string, width int) [][]string {
	cells := make([][]string, width)
	depth := 1
	for i := 0; i < width; i++ {
		if i < len(row) {
			cells[i] = strings.Split(row[i], "\n")
		} else {
			cells[i] = []string{""}
		}
		if len(cells[i]) > depth {
			depth = len(cells[i])
		}
	}

	lines := make([][]string, depth)
	for n := 0; n < depth; n++ {
		line := make([]string, width)
		for i := 0; i < width; i++ {
			if n < len(cells[i]) {
				line[i] = cells[i][n]
			}
		}
		lines[n] = line
	}
	return lines
}
