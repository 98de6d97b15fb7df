package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxQueryLength is the longest accepted query, in characters.
const MaxQueryLength = 1000

type QueryPostRequest struct {
	// Text of the question.
	Text string `json:"text" validate:"required,max=1000"`

	// Filters narrow the search. They are passed to the model as part of the
	// query text.
	Filters *QueryFilters `json:"filters,omitempty"`
}

type QueryFilters struct {
	// StartDate and EndDate are YYYY-MM-DD. Both must be set for the date
	// range to apply.
	StartDate   string   `json:"start-date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate     string   `json:"end-date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	SourceUnits []string `json:"source-units,omitempty" validate:"dive,required"`
	// MinPenalty is the minimum fine in NT$.
	MinPenalty int64 `json:"min-penalty,omitempty" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the request, returning an error that describes each invalid
// field.
func (r QueryPostRequest) Validate() error {
	r.Text = strings.TrimSpace(r.Text)
	err := validate.Struct(r)
	if err == nil {
		return r.Filters.validateDateRange()
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q validation", fe.Namespace(), fe.Tag())
	}
	return errors.New(strings.Join(msgs, ", "))
}

func (f *QueryFilters) validateDateRange() error {
	if f == nil || (f.StartDate == "" && f.EndDate == "") {
		return nil
	}
	if f.StartDate == "" || f.EndDate == "" {
		return errors.New("filters.start-date and filters.end-date must be set together")
	}
	if f.StartDate > f.EndDate {
		return errors.New("filters.start-date must not be after filters.end-date")
	}
	return nil
}

type QueryPostResponse struct {
	// Answer is markdown, with links to law articles and case announcements.
	Answer string `json:"answer"`
	// Sources are the cases the answer is based on, newest first.
	Sources []Source `json:"sources"`
	// CitedSources is the number of excerpts the search service cited. Several
	// excerpts may come from the same case.
	CitedSources int `json:"cited-sources"`
	// Retried is set when the first answer cited no sources and the query was
	// sent again.
	Retried bool `json:"retried"`
	// Fallback is set when no answer citing the case database was produced.
	// Answer is empty, and Message explains what happened.
	Fallback bool   `json:"fallback"`
	Message  string `json:"message,omitempty"`
}

type Source struct {
	FileID  string `json:"file-id"`
	Title   string `json:"title"`
	Date    string `json:"date"`
	URL     string `json:"url,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}
