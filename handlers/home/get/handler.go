package get

import (
	"log/slog"
	"net/http"

	"github.com/a-h/penaltysearch/render"
)

// New serves the empty query form. page holds the parts of the page that do
// not depend on the request.
func New(log *slog.Logger, page render.Page) Handler {
	return Handler{
		log:  log,
		page: page,
	}
}

type Handler struct {
	log  *slog.Logger
	page render.Page
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Render(w); err != nil {
		h.log.Error("failed to render page", slog.Any("error", err))
	}
}
