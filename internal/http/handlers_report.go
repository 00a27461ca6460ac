package http

import (
	"net/http"
	"strconv"

	"tally/internal/core"
)

// handleDailyReport lists one day's expenses with their total. An absent day
// means today.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	day := core.Today()
	if raw := r.URL.Query().Get("day"); raw != "" {
		var err error
		if day, err = core.ParseDate(raw); err != nil {
			fail(w, r, err)
			return
		}
	}

	report, err := s.service.DailyReport(r.Context(), callerFrom(r.Context()), day)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", report)
}

// handleMonthlyReport aggregates the month containing the date parameter by
// category. Any day of the month designates it; an absent date means the
// current month.
func (s *Server) handleMonthlyReport(w http.ResponseWriter, r *http.Request) {
	designator := r.URL.Query().Get("date")
	if designator == "" {
		designator = core.Today().String()
	}

	report, err := s.service.MonthlyReport(r.Context(), callerFrom(r.Context()), designator)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", report)
}

// handleMonthlyDetail lists the raw rows behind one category group of a
// monthly report. A categoryId that does not parse selects the uncategorized
// bucket, mirroring how the grouping keys nil categories.
func (s *Server) handleMonthlyDetail(w http.ResponseWriter, r *http.Request) {
	designator := r.URL.Query().Get("date")
	if designator == "" {
		designator = core.Today().String()
	}

	var categoryID *int64
	if id, err := strconv.ParseInt(r.URL.Query().Get("categoryId"), 10, 64); err == nil {
		categoryID = &id
	}

	report, err := s.service.MonthlyCategoryDetail(r.Context(), callerFrom(r.Context()), designator, categoryID)
	if err != nil {
		fail(w, r, err)
		return
	}
	ok(w, "", report)
}
