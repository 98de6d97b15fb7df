package get

import (
	"net/http"

	"github.com/a-h/penaltysearch/models"
	"github.com/a-h/respond"
)

func New(version string) Handler {
	return Handler{
		version: version,
	}
}

type Handler struct {
	version string
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	respond.WithJSON(w, models.HealthGetResponse{Status: "ok", Version: h.version}, http.StatusOK)
}
