package main

import (
	"fmt"
	"io"

	"github.com/Sternrassler/oneapi-client/pkg/models"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
)

const dialogWidth = 72

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

var movieHeader = table.Row{"ID", "Name", "Runtime", "Budget", "Box office", "Oscars", "Rotten Tomatoes"}

func movieRow(m models.Movie) table.Row {
	return table.Row{
		m.MovieID,
		m.Name,
		fmt.Sprintf("%d min", m.RuntimeInMinutes),
		millions(m.BudgetInMillions),
		millions(m.BoxOfficeRevenueInMillions),
		fmt.Sprintf("%d / %d", m.AcademyAwardWins, m.AcademyAwardNominations),
		fmt.Sprintf("%g%%", m.RottenTomatoesScore),
	}
}

var quoteHeader = table.Row{"ID", "Dialog", "Movie", "Character"}

func quoteRow(q models.Quote) table.Row {
	return table.Row{q.QuoteID, q.Dialog, q.MovieID, q.CharacterID}
}

func quoteColumns() []table.ColumnConfig {
	return []table.ColumnConfig{{Number: 2, WidthMax: dialogWidth}}
}

// millions renders an amount given in millions of dollars, e.g. "$1,120M".
func millions(v float64) string {
	return "$" + humanize.Commaf(v) + "M"
}

func count(n int) string {
	return humanize.Comma(int64(n))
}
