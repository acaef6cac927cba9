// Package report renders run reports as aligned plain-text tables.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"medcodex/internal/models"
)

var header = []string{"SOURCE", "READ", "FILTERED", "VALID", "REJECTED", "DEDUPED", "WRITTEN", "OUTPUT"}

// Table renders the run reports as a pipe-separated table with cells padded
// by display width, so wide runes in source names keep columns aligned.
func Table(reports []*models.RunReport) string {
	rows := [][]string{header}

	for _, r := range reports {
		rows = append(rows, []string{
			r.SourceID,
			strconv.Itoa(r.RowsRead),
			strconv.Itoa(r.RowsFiltered),
			strconv.Itoa(r.RowsValid),
			strconv.Itoa(r.RowsRejected),
			strconv.Itoa(r.RowsDeduplicated),
			strconv.Itoa(r.RowsWritten()),
			r.OutputPath,
		})
	}

	widths := make([]int, len(header))

	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder

	writeRow := func(row []string) {
		b.WriteString("|")

		for i, cell := range row {
			b.WriteString(" ")
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", widths[i]-runewidth.StringWidth(cell)))
			b.WriteString(" |")
		}

		b.WriteString("\n")
	}

	writeRow(rows[0])

	b.WriteString("|")

	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}

	b.WriteString("\n")

	for _, row := range rows[1:] {
		writeRow(row)
	}

	return b.String()
}

// Summary returns a one-line digest of a single run.
func Summary(r *models.RunReport) string {
	return fmt.Sprintf(
		"%s: read=%d filtered=%d valid=%d rejected=%d deduped=%d written=%d in %s",
		r.SourceID,
		r.RowsRead,
		r.RowsFiltered,
		r.RowsValid,
		r.RowsRejected,
		r.RowsDeduplicated,
		r.RowsWritten(),
		r.Duration.Round(time.Millisecond),
	)
}
