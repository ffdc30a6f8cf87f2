// Package export renders ledger and canonical data into the formats the
// review workflow consumes: a spreadsheet for the unmatched-candidate
// queue and GeoJSON for mapping the canonical set.
package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/reactormap/reactorsync/internal/model"
)

// reviewHeader is the fixed column order of the review spreadsheet.
var reviewHeader = []string{"Name", "Country", "Country Code", "Capacity (MW)", "Status", "Source", "Seen At"}

// WriteReviewXLSX writes the unmatched candidates to a single-sheet
// spreadsheet at path. Candidates are written in the order given.
func WriteReviewXLSX(path string, candidates []model.Candidate) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Review Queue")
	if err != nil {
		return eris.Wrap(err, "export: add review sheet")
	}

	header := sheet.AddRow()
	for _, title := range reviewHeader {
		header.AddCell().Value = title
	}

	for _, c := range candidates {
		row := sheet.AddRow()
		row.AddCell().Value = c.Name
		row.AddCell().Value = c.Country
		row.AddCell().Value = c.CountryCode
		capacity := row.AddCell()
		if c.Capacity != nil {
			capacity.SetInt(*c.Capacity)
		}
		row.AddCell().Value = string(c.Status)
		row.AddCell().Value = c.Source
		row.AddCell().Value = c.SeenAt.UTC().Format(model.TimeFormat)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
