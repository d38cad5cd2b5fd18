package api

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/soochol/dbadmin/internal/dbadmin"
)

const apiKeyHeader = "X-API-Key"

// requireAPIKey rejects requests whose X-API-Key does not match the
// configured bcrypt hash. Without a hash every request passes.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.apiKeyHash) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get(apiKeyHeader)
		if key == "" || bcrypt.CompareHashAndPassword(s.apiKeyHash, []byte(key)) != nil {
			writeJSON(w, http.StatusUnauthorized, &dbadmin.Error{Kind: dbadmin.KindUnknown, Message: "invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HashAPIKey returns the bcrypt hash to configure as server.api_key_hash.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
