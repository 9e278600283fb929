package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"ledger-service/internal/errors"
)

func writeJSON[T any](w http.ResponseWriter, statusCode int, message string, payload T) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(NewEnvelope(message, payload, statusCode))
}

func writeError(w http.ResponseWriter, err error) {
	appErr := errors.AsAppError(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.HTTPStatus())
	json.NewEncoder(w).Encode(NewErrorEnvelope(appErr))
}

// WriteNotFound answers unmatched routes with the error envelope.
func WriteNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.NewAppErrorf(errors.RouteNotFound, "no route for %s %s", r.Method, r.URL.Path))
}

func WriteMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.NewAppErrorf(errors.MethodNotAllowed, "method %s is not allowed on %s", r.Method, r.URL.Path))
}

func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error())
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.ErrInvalidID.WithDetails(fmt.Sprintf("got %q", raw))
	}
	return id, nil
}

// queryInt reads an integer query parameter, falling back to def when it is
// absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.NewAppErrorf(errors.InvalidPage, "%s must be an integer", name).WithDetails(fmt.Sprintf("got %q", raw))
	}
	return v, nil
}
