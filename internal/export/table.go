package export

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/rahul/foundry/internal/usage"
)

// UsageTable renders the per-stage token breakdown of a ledger.
func UsageTable(ledger []usage.Entry) string {
	acc := usage.NewAccumulator()
	acc.Restore(ledger)
	total := acc.Total()

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "Input", "Output", "Total"})
	for _, e := range acc.Breakdown() {
		t.AppendRow(table.Row{
			e.Stage,
			humanize.Comma(int64(e.Usage.Input)),
			humanize.Comma(int64(e.Usage.Output)),
			humanize.Comma(int64(e.Usage.Total)),
		})
	}
	t.AppendFooter(table.Row{
		"Total",
		humanize.Comma(int64(total.Input)),
		humanize.Comma(int64(total.Output)),
		humanize.Comma(int64(total.Total)),
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	return t.Render() + fmt.Sprintf("\n~%s g CO2", humanize.FtoaWithDigits(acc.CO2Grams(), 2))
}
