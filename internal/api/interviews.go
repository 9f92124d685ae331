package api

import (
	"net/http"
	"strings"

	"github.com/talvik/intervox/internal/archive"
	"github.com/talvik/intervox/internal/log"
)

type interviewHandler struct {
	catalog *archive.Catalog
	logger  log.Logger
}

// list returns interview metadata. With an ids query parameter
// (comma-separated) only those records are returned, in request order;
// without it the whole catalog is listed.
func (h *interviewHandler) list(w http.ResponseWriter, r *http.Request) {
	var (
		interviews []archive.Interview
		err        error
	)

	if raw := r.URL.Query().Get("ids"); raw != "" {
		ids := make([]string, 0)
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		interviews, err = h.catalog.ByIDs(ids)
	} else {
		interviews, err = h.catalog.All()
	}

	if err != nil {
		h.logger.Error("interview lookup failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "interview lookup failed", err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"interviews": interviews,
		"count":      len(interviews),
	})
}
