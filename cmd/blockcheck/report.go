// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/go-gota/gota/dataframe"
	"github.com/pkg/errors"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)
	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)
	redRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "9", Dark: "9"}).
			Bold(true).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// tableWithReds is a table where failed rows are highlighted.
type tableWithReds struct {
	Table *lgtable.Table
	Count int
	Reds  map[int]bool
}

func (t *tableWithReds) Row(isRed bool, row ...string) {
	if isRed {
		t.Reds[t.Count] = true
	}
	t.Table.Row(row...)
	t.Count++
}

func newTableWithReds(alignments ...lipgloss.Position) *tableWithReds {
	t := &tableWithReds{Reds: make(map[int]bool)}
	t.Table = lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row < 0 {
				return headerRowStyle
			}
			switch {
			case t.Reds[row]:
				s = redRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			alignment := lipgloss.Left
			if col < len(alignments) {
				alignment = alignments[col]
			} else if len(alignments) > 0 {
				alignment = alignments[len(alignments)-1]
			}
			return s.Align(alignment)
		})
	return t
}

// report of a blockcheck run.
type report struct {
	runID     string
	seed      uint64
	step, tol float64
	results   []result
	elapsed   time.Duration
}

// NumFailures counts the partials that failed the tolerance, plus the blocks that failed to build or check.
func (r *report) NumFailures() (count int) {
	for _, res := range r.results {
		if res.err != nil {
			count++
			continue
		}
		for _, check := range res.checks {
			if !check.Passed(r.tol) {
				count++
			}
		}
	}
	return
}

func formatError(v float64) string {
	if v == 0 {
		return "0"
	}
	return fmt.Sprintf("%.2e", v)
}

// Render returns the summary and the detailed tables.
func (r *report) Render() string {
	var sb strings.Builder
	var numPartials, nnz int
	for _, res := range r.results {
		numPartials += len(res.checks)
		for _, check := range res.checks {
			nnz += check.NNZ
		}
	}

	sb.WriteString(titleStyle.Render("Summary") + "\n")
	summary := newTableWithReds(lipgloss.Right, lipgloss.Left)
	summary.Row(false, "run", r.runID)
	summary.Row(false, "seed", fmt.Sprint(r.seed))
	summary.Row(false, "step / tolerance", fmt.Sprintf("%g / %g", r.step, r.tol))
	summary.Row(false, "# blocks", humanize.Comma(int64(len(r.results))))
	summary.Row(false, "# partials", humanize.Comma(int64(numPartials)))
	summary.Row(false, "# declared non-zeros", humanize.Comma(int64(nnz)))
	failures := r.NumFailures()
	summary.Row(failures > 0, "# failures", humanize.Comma(int64(failures)))
	summary.Row(false, "elapsed", r.elapsed.Round(time.Microsecond).String())
	sb.WriteString(summary.Table.Render() + "\n")

	sb.WriteString(titleStyle.Render("Partials") + "\n")
	details := newTableWithReds(lipgloss.Left, lipgloss.Left, lipgloss.Right)
	details.Table.Headers("Block", "Partial", "NNZ", "Max error", "Max undeclared", "Status")
	for _, res := range r.results {
		if res.err != nil {
			details.Row(true, res.demo.name, "-", "-", "-", "-", res.err.Error())
			continue
		}
		for _, check := range res.checks {
			nnzStr := "-"
			if check.Declared {
				nnzStr = humanize.Comma(int64(check.NNZ))
			}
			status := "ok"
			if !check.Passed(r.tol) {
				status = "FAILED"
			}
			details.Row(status != "ok", res.block.Name(), check.PartialKey.String(), nnzStr,
				formatError(check.MaxError), formatError(check.MaxUndeclared), status)
		}
	}
	sb.WriteString(details.Table.Render())
	return sb.String()
}

// csvRow is one line of the CSV output.
type csvRow struct {
	Block         string  `dataframe:"block"`
	Of            string  `dataframe:"of"`
	Wrt           string  `dataframe:"wrt"`
	Declared      bool    `dataframe:"declared"`
	NNZ           int     `dataframe:"nnz"`
	MaxError      float64 `dataframe:"max_error"`
	MaxUndeclared float64 `dataframe:"max_undeclared"`
	Passed        bool    `dataframe:"passed"`
}

// WriteCSV writes one row per checked partial. Blocks that failed to build or to check are not included.
func (r *report) WriteCSV(w io.Writer) error {
	var rows []csvRow
	for _, res := range r.results {
		for _, check := range res.checks {
			rows = append(rows, csvRow{
				Block:         res.block.Name(),
				Of:            check.Of,
				Wrt:           check.Wrt,
				Declared:      check.Declared,
				NNZ:           check.NNZ,
				MaxError:      check.MaxError,
				MaxUndeclared: check.MaxUndeclared,
				Passed:        check.Passed(r.tol),
			})
		}
	}
	if len(rows) == 0 {
		return errors.New("no partials checked, nothing to write")
	}
	df := dataframe.LoadStructs(rows)
	if df.Err != nil {
		return errors.Wrap(df.Err, "building results dataframe")
	}
	return errors.Wrap(df.WriteCSV(w), "writing results CSV")
}
