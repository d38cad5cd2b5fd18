package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

// statusFor maps an error kind to the HTTP status the remote client maps
// back to the same kind.
func statusFor(kind dbadmin.ErrorKind) int {
	switch kind {
	case dbadmin.KindNotFound:
		return http.StatusNotFound
	case dbadmin.KindValidation:
		return http.StatusBadRequest
	case dbadmin.KindNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	e := dbadmin.AsError(err)
	writeJSON(w, statusFor(e.Kind), e)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeError(w, dbadmin.Validationf("%s", msg))
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
