// Package export writes assignment results for offline consumers.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/courier-dispatch/core/model"
)

// Report is the JSON shape of an assignment result. It matches the HTTP
// response of POST /assign.
type Report struct {
	Assignments   []model.Assignment `json:"assignments"`
	Skipped       int                `json:"skipped"`
	SkippedOrders []model.Skip       `json:"skippedOrders"`
}

// NewReport builds a report, normalising nil slices to empty ones.
func NewReport(assignments []model.Assignment, skipped []model.Skip) Report {
	if assignments == nil {
		assignments = []model.Assignment{}
	}
	if skipped == nil {
		skipped = []model.Skip{}
	}
	return Report{Assignments: assignments, Skipped: len(skipped), SkippedOrders: skipped}
}

// WriteJSON writes the report to w as indented JSON.
func WriteJSON(w io.Writer, r Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// WriteCSV writes one row per order: assigned orders first, then skipped
// orders with an empty courier and their reason.
func WriteCSV(w io.Writer, r Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"order_id", "courier_id", "score", "skip_reason"}); err != nil {
		return err
	}
	for _, a := range r.Assignments {
		rec := []string{a.OrderID, a.CourierID, strconv.FormatFloat(a.Score, 'f', -1, 64), ""}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, s := range r.SkippedOrders {
		if err := cw.Write([]string{s.OrderID, "", "", s.Reason.String()}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
