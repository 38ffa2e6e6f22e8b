// Package httpapi exposes the lifecycle facade over JSON/HTTP.
//
// Identity comes from headers set by an upstream gateway: X-User-ID,
// X-Display-Name and X-Entitled. The adapter holds no state of its own.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/PiperEve/BlueGhost/internal/lifecycle"
	"github.com/PiperEve/BlueGhost/internal/model"
)

// Identity headers.
const (
	HeaderUserID      = "X-User-ID"
	HeaderDisplayName = "X-Display-Name"
	HeaderEntitled    = "X-Entitled"
)

// Error codes for failures that are not domain errors.
const (
	ErrBadRequest = "BAD_REQUEST"
	ErrInternal   = "INTERNAL"
)

// RouterContext carries per-request state through a handler chain.
type RouterContext struct {
	facade *lifecycle.Facade
	logger *slog.Logger
	user   model.UserContext
}

// HTTPError stops or annotates a handler chain.
//
// Level 1: respond to the client without logging.
// Level 2: log a warning and continue the chain.
// Level 3: log an error and respond.
type HTTPError struct {
	Level     int    `json:"-"`
	IError    error  `json:"-"`
	Status    int    `json:"status"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
}

// Handler is one link in a chain.
type Handler func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError

// Handle runs handlers in order until one returns a level 1 or 3 error.
func Handle(f *lifecycle.Facade, logger *slog.Logger, handlers ...Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc := &RouterContext{facade: f, logger: logger}
		w.Header().Set("Content-Type", "application/json")

		for _, handler := range handlers {
			e := handler(rc, w, r)
			if e == nil {
				continue
			}
			switch e.Level {
			case 2:
				logger.Warn("request warning",
					"method", r.Method,
					"path", r.URL.Path,
					"error", e.IError,
				)
				continue
			case 3:
				logger.Error("request failed",
					"method", r.Method,
					"path", r.URL.Path,
					"status", e.Status,
					"error", e.IError,
				)
			}
			w.WriteHeader(e.Status)
			if err := json.NewEncoder(w).Encode(e); err != nil {
				logger.Error("encode error response", "error", err)
			}
			return
		}
	})
}

// NewRouter registers every route.
func NewRouter(f *lifecycle.Facade, logger *slog.Logger) *mux.Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := mux.NewRouter()
	h := func(handlers ...Handler) http.Handler {
		return Handle(f, logger, append([]Handler{Identify()}, handlers...)...)
	}

	r.Handle("/posts", h(CreatePost())).Methods(http.MethodPost)
	r.Handle("/posts", h(ListPosts())).Methods(http.MethodGet)
	r.Handle("/posts/{id}", h(GetPost())).Methods(http.MethodGet)
	r.Handle("/posts/{id}", h(DeletePost())).Methods(http.MethodDelete)
	r.Handle("/posts/{id}/reactions", h(React())).Methods(http.MethodPost)

	r.Handle("/battles", h(StartBattle())).Methods(http.MethodPost)
	r.Handle("/battles", h(ListBattles())).Methods(http.MethodGet)
	r.Handle("/battles/{id}", h(GetBattle())).Methods(http.MethodGet)
	r.Handle("/battles/{id}/votes", h(Vote())).Methods(http.MethodPost)

	r.Handle("/rewind", h(ListSaved())).Methods(http.MethodGet)
	r.Handle("/rewind", h(SaveToRewind())).Methods(http.MethodPost)
	r.Handle("/rewind/usage", h(RewindUsage())).Methods(http.MethodGet)
	r.Handle("/rewind/entitlement", h(PurchaseEntitlement())).Methods(http.MethodPost)
	r.Handle("/rewind/{id}", h(DeleteSaved())).Methods(http.MethodDelete)

	r.NotFoundHandler = Handle(f, logger, func(*RouterContext, http.ResponseWriter, *http.Request) *HTTPError {
		return &HTTPError{Level: 1, Status: http.StatusNotFound, Error: "no such route", ErrorCode: string(model.CodeNotFound)}
	})
	return r
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// Identify reads the caller identity headers. A request without a user id
// proceeds as the anonymous user with a level 2 warning.
func Identify() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		rc.user = model.UserContext{
			UserID:      r.Header.Get(HeaderUserID),
			DisplayName: r.Header.Get(HeaderDisplayName),
		}
		if v := r.Header.Get(HeaderEntitled); v != "" {
			entitled, err := strconv.ParseBool(v)
			if err != nil {
				return badRequest(err, "X-Entitled must be a boolean")
			}
			rc.user.Entitled = entitled
		}
		if rc.user.UserID == "" {
			return &HTTPError{Level: 2, IError: errMissingUser}
		}
		return nil
	}
}

// fromError maps a facade error to a response.
func fromError(err error) *HTTPError {
	code := model.CodeOf(err)
	e := &HTTPError{Level: 1, IError: err, Error: err.Error(), ErrorCode: string(code)}
	switch code {
	case model.CodeInvalidContent:
		e.Status = http.StatusBadRequest
	case model.CodeNotFound:
		e.Status = http.StatusNotFound
	case model.CodeAlreadyInBattle, model.CodeBattleClosed, model.CodeAlreadyVoted, model.CodeAlreadySaved:
		e.Status = http.StatusConflict
	case model.CodeQuotaExceeded:
		e.Status = http.StatusForbidden
	default:
		e.Level = 3
		e.Status = http.StatusInternalServerError
		e.Error = http.StatusText(http.StatusInternalServerError)
		if code == "" {
			e.ErrorCode = ErrInternal
		}
	}
	return e
}

func badRequest(err error, msg string) *HTTPError {
	return &HTTPError{Level: 1, IError: err, Status: http.StatusBadRequest, Error: msg, ErrorCode: ErrBadRequest}
}

func writeJSON(w http.ResponseWriter, status int, v any) *HTTPError {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Headers are already sent; only the log can record this.
		return &HTTPError{Level: 2, IError: err}
	}
	return nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) *HTTPError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err, "invalid JSON body: "+err.Error())
	}
	return nil
}
