package http

import (
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"timesheet/internal/core"
)

type bucketView struct {
	Bucket core.Bucket
	From   string
	To     string
	Groups []core.GroupTotal
	Total  decimal.Decimal
}

type summaryView struct {
	Reference string
	Buckets   []bucketView
}

func newSummaryView(set core.SummarySet) summaryView {
	v := summaryView{Reference: set.Reference.String()}
	for _, b := range core.Buckets {
		sum := set.Get(b)
		v.Buckets = append(v.Buckets, bucketView{
			Bucket: b,
			From:   sum.From.String(),
			To:     sum.To.String(),
			Groups: sum.Groups,
			Total:  sum.Total,
		})
	}
	return v
}

// handleSummaryPartial renders the three rollups for ?date= (default today).
func (s *Server) handleSummaryPartial(w http.ResponseWriter, r *http.Request) {
	ref, err := refDate(r)
	if err != nil {
		BadRequestError("Invalid date, expected YYYY-MM-DD").Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "summary.html", newSummaryView(s.svc.Summaries(ref)))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
