package collector

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"QuoteHarvest/internal/model"
)

// minCells is the fewest <td> cells a data row may have. Dividend and split
// rows on the history page span fewer cells and are skipped.
const minCells = 6

// volumeCell is the Volume column; cell 5 is the adjusted close.
const volumeCell = 6

// ParseTable extracts quote rows from the first <table> in html. Rows after
// the header with fewer than six cells are skipped without error.
func ParseTable(html string) ([]model.RawQuote, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %w", model.ErrParse, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table element found", model.ErrParse)
	}

	var quotes []model.RawQuote
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			return // header
		}
		cells := row.Find("td")
		if cells.Length() < minCells {
			return
		}
		text := func(j int) string { return strings.TrimSpace(cells.Eq(j).Text()) }

		q := model.RawQuote{
			Date:   text(0),
			Open:   text(1),
			High:   text(2),
			Low:    text(3),
			Close:  text(4),
			Volume: "N/A",
		}
		if cells.Length() > volumeCell {
			q.Volume = text(volumeCell)
		}
		quotes = append(quotes, q)
	})
	return quotes, nil
}
