// Package handlers exposes the deck storage verbs over HTTP. It is a thin
// layer: routing, body decoding and error mapping; all semantics live in
// the storage facade.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	presentations "github.com/sethwebster/presentations"
	"github.com/sethwebster/presentations/deck"
)

// App routes deck requests to the facade. It implements http.Handler and
// can be wrapped in logging or metrics middleware by the caller.
type App struct {
	router  *mux.Router
	service presentations.DeckService
	log     *logrus.Entry
}

// NewApp returns a configured app ready to serve requests.
func NewApp(service presentations.DeckService, log *logrus.Entry) *App {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	app := &App{
		router:  mux.NewRouter(),
		service: service,
		log:     log,
	}

	app.router.HandleFunc("/decks", app.listDecks).Methods(http.MethodGet)
	app.router.HandleFunc("/decks/{id}", app.getDeck).Methods(http.MethodGet)
	app.router.HandleFunc("/decks/{id}", app.saveDeck).Methods(http.MethodPut)
	app.router.HandleFunc("/decks/{id}", app.deleteDeck).Methods(http.MethodDelete)
	app.router.HandleFunc("/decks/{id}/meta", app.getMeta).Methods(http.MethodGet)
	app.router.HandleFunc("/decks/{id}/thumb", app.getThumbnail).Methods(http.MethodGet)
	return app
}

func (app *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	app.router.ServeHTTP(w, r)
}

// listDecks serves both the plain listing and, when any filter parameter
// is present, the search endpoint.
func (app *App) listDecks(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if hasSearchParams(params) {
		metas, err := app.service.Search(r.Context(), queryFromParams(params))
		if err != nil {
			app.writeError(w, r, err)
			return
		}
		app.writeJSON(w, http.StatusOK, metas)
		return
	}

	briefs, err := app.service.ListDecks(r.Context())
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusOK, briefs)
}

func (app *App) getDeck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	d, err := app.service.GetDeck(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if d == nil {
		app.writeErrorCode(w, http.StatusNotFound, errorCodeNotFound, "deck unknown", id)
		return
	}
	app.writeJSON(w, http.StatusOK, d)
}

func (app *App) saveDeck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var d deck.Deck
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		app.writeErrorCode(w, http.StatusBadRequest, errorCodeInvalidBody, "request body is not a deck document", err.Error())
		return
	}
	if err := app.service.SaveDeck(r.Context(), id, &d); err != nil {
		app.writeError(w, r, err)
		return
	}
	app.writeJSON(w, http.StatusCreated, map[string]string{"id": id, "updatedAt": d.Meta.UpdatedAt})
}

func (app *App) deleteDeck(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := app.service.DeleteDeck(r.Context(), id); err != nil {
		app.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) getMeta(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := app.service.GetDeckMetadata(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if meta == nil {
		app.writeErrorCode(w, http.StatusNotFound, errorCodeNotFound, "deck unknown", id)
		return
	}
	app.writeJSON(w, http.StatusOK, meta)
}

func (app *App) getThumbnail(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := app.service.GetDeckThumbnail(r.Context(), id)
	if err != nil {
		app.writeError(w, r, err)
		return
	}
	if p == nil {
		app.writeErrorCode(w, http.StatusNotFound, errorCodeNotFound, "thumbnail unknown", id)
		return
	}
	w.Header().Set("Content-Type", "image/webp")
	w.WriteHeader(http.StatusOK)
	w.Write(p)
}

func (app *App) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		app.log.WithError(err).Error("writing response body")
	}
}
