package parcels_api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/BearBump/ParcelBox/internal/services/reports"
)

func (a *ParcelsAPI) monthlyReport(w http.ResponseWriter, r *http.Request) {
	rep, err := a.reports.Monthly(r.Context(), r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", reports.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, rep.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(rep.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rep.Data)
}
