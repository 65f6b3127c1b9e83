package web

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// handleExportRuns streams run_log entries as a CSV download.
func (s *Server) handleExportRuns(w http.ResponseWriter, r *http.Request) {
	limit := min(parseIntParam(r, "limit", maxHistoryLimit), maxHistoryLimit)

	records, err := s.history.History(r.Context(), s.namespace, limit)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}

	filename := fmt.Sprintf("run_log_%s.csv", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"ID", "Run Timestamp", "As Of", "Rows Loaded", "Source File"}); err != nil {
		return
	}
	for _, rec := range records {
		if err := cw.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.RunTS.UTC().Format(time.RFC3339),
			rec.AsOf.Format(time.DateOnly),
			strconv.Itoa(rec.RowsLoaded),
			rec.SourceFile,
		}); err != nil {
			return
		}
	}
	cw.Flush()
}
