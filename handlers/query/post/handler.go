package post

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/penaltysearch/middleware"
	"github.com/a-h/penaltysearch/models"
	"github.com/a-h/respond"
)

// maxBodyBytes allows for a query of the maximum length in multi-byte
// characters, plus filters.
const maxBodyBytes = 64 * 1024

type Answerer interface {
	Answer(ctx context.Context, req models.QueryPostRequest) (models.QueryPostResponse, error)
}

func New(log *slog.Logger, answerer Answerer) Handler {
	return Handler{
		log:      log,
		answerer: answerer,
	}
}

type Handler struct {
	log      *slog.Logger
	answerer Answerer
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("requestID", middleware.RequestIDFromContext(r.Context())))

	var req models.QueryPostRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req)
	if err != nil {
		log.Error("failed to decode body", slog.Any("error", err))
		respond.WithError(w, "failed to decode body", http.StatusBadRequest)
		return
	}
	if err = req.Validate(); err != nil {
		respond.WithError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.answerer.Answer(r.Context(), req)
	if err != nil {
		log.Error("failed to answer query", slog.Any("error", err))
		respond.WithError(w, "failed to answer query", http.StatusBadGateway)
		return
	}
	respond.WithJSON(w, resp, http.StatusOK)
}
