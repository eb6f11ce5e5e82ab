package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/assetref"
	"github.com/sethwebster/presentations/deck"
)

// Error codes surfaced on the wire. The integer HTTP status carries the
// class; the code string identifies the failure for clients and logs.
const (
	errorCodeNotFound     = "NOT_FOUND"
	errorCodeInvalidBody  = "INVALID_BODY"
	errorCodeBadReference = "BAD_REFERENCE"
	errorCodeCyclicGroup  = "CYCLIC_GROUP"
	errorCodeCorruptData  = "CORRUPT_DATA"
	errorCodeStorage      = "STORAGE"
)

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Detail  interface{} `json:"detail,omitempty"`
}

func (app *App) writeErrorCode(w http.ResponseWriter, status int, code, message string, detail interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorEnvelope{
		Errors: []apiError{{Code: code, Message: message, Detail: detail}},
	}); err != nil {
		app.log.WithError(err).Error("writing error body")
	}
}

// writeError maps a facade error to its wire form.
func (app *App) writeError(w http.ResponseWriter, r *http.Request, err error) {
	app.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")

	var cyclic deck.ErrCyclicGroup
	var corrupt presentations.ErrCorruptData
	switch {
	case errors.Is(err, assetref.ErrBadReference):
		app.writeErrorCode(w, http.StatusBadRequest, errorCodeBadReference, "malformed asset reference", err.Error())
	case errors.As(err, &cyclic):
		app.writeErrorCode(w, http.StatusBadRequest, errorCodeCyclicGroup, "cyclic group tree", cyclic.GroupID)
	case errors.As(err, &corrupt):
		app.writeErrorCode(w, http.StatusInternalServerError, errorCodeCorruptData, "stored document is corrupt", corrupt.ID)
	default:
		app.writeErrorCode(w, http.StatusInternalServerError, errorCodeStorage, "storage failure", err.Error())
	}
}

func hasSearchParams(params url.Values) bool {
	for _, key := range []string{"q", "tags", "owner", "from", "to", "limit", "offset", "sort", "order"} {
		if params.Get(key) != "" {
			return true
		}
	}
	return false
}

// queryFromParams builds a tolerant search query; malformed numerics are
// dropped rather than rejected.
func queryFromParams(params url.Values) presentations.SearchQuery {
	q := presentations.SearchQuery{
		Text:     params.Get("q"),
		OwnerID:  params.Get("owner"),
		DateFrom: params.Get("from"),
		DateTo:   params.Get("to"),
		SortBy:   params.Get("sort"),
	}
	if tags := params.Get("tags"); tags != "" {
		for _, t := range strings.Split(tags, ",") {
			if t = strings.TrimSpace(t); t != "" {
				q.Tags = append(q.Tags, t)
			}
		}
	}
	if n, err := strconv.Atoi(params.Get("limit")); err == nil {
		q.Limit = n
	}
	if n, err := strconv.Atoi(params.Get("offset")); err == nil {
		q.Offset = n
	}
	if order := params.Get("order"); order == "asc" || order == "desc" {
		q.SortOrder = order
	}
	return q
}
