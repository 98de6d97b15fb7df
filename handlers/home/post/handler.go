package post

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/penaltysearch/middleware"
	"github.com/a-h/penaltysearch/models"
	"github.com/a-h/penaltysearch/render"
)

type Answerer interface {
	Answer(ctx context.Context, req models.QueryPostRequest) (models.QueryPostResponse, error)
}

// New handles query form submissions, rendering the answer below the form.
func New(log *slog.Logger, page render.Page, answerer Answerer) Handler {
	return Handler{
		log:      log,
		page:     page,
		answerer: answerer,
	}
}

type Handler struct {
	log      *slog.Logger
	page     render.Page
	answerer Answerer
}

const emptyQueryWarning = "請輸入查詢內容"

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("requestID", middleware.RequestIDFromContext(r.Context())))
	page := h.page

	if err := r.ParseForm(); err != nil {
		page.Warning = "無法讀取表單"
		h.render(w, log, page, http.StatusBadRequest)
		return
	}
	req, err := parseForm(r)
	page.Query = req.Text
	if req.Filters != nil {
		page.Filters = *req.Filters
	}
	if err != nil {
		page.Warning = err.Error()
		h.render(w, log, page, http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		page.Warning = emptyQueryWarning
		h.render(w, log, page, http.StatusBadRequest)
		return
	}
	if err = req.Validate(); err != nil {
		page.Warning = err.Error()
		h.render(w, log, page, http.StatusBadRequest)
		return
	}

	resp, err := h.answerer.Answer(r.Context(), req)
	if err != nil {
		log.Error("failed to answer query", slog.Any("error", err))
		page.Error = err.Error()
		h.render(w, log, page, http.StatusBadGateway)
		return
	}
	if page.Result, err = render.NewResult(resp); err != nil {
		log.Error("failed to render answer", slog.Any("error", err))
		page.Error = err.Error()
		h.render(w, log, page, http.StatusInternalServerError)
		return
	}
	h.render(w, log, page, http.StatusOK)
}

// parseForm reads the question and filters. A quick query button replaces
// the question text.
func parseForm(r *http.Request) (req models.QueryPostRequest, err error) {
	req.Text = r.PostForm.Get("text")
	if quick := r.PostForm.Get("quick"); quick != "" {
		req.Text = quick
	}
	f := models.QueryFilters{
		StartDate:   r.PostForm.Get("start-date"),
		EndDate:     r.PostForm.Get("end-date"),
		SourceUnits: r.PostForm["source-unit"],
	}
	if minPenalty := strings.TrimSpace(r.PostForm.Get("min-penalty")); minPenalty != "" {
		f.MinPenalty, err = strconv.ParseInt(minPenalty, 10, 64)
		if err != nil {
			req.Filters = &f
			return req, errInvalidMinPenalty
		}
	}
	if f.StartDate != "" || f.EndDate != "" || len(f.SourceUnits) > 0 || f.MinPenalty != 0 {
		req.Filters = &f
	}
	return req, nil
}

var errInvalidMinPenalty = errors.New("裁罰金額必須是整數")

func (h Handler) render(w http.ResponseWriter, log *slog.Logger, page render.Page, status int) {
	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		log.Error("failed to render page", slog.Any("error", err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}
