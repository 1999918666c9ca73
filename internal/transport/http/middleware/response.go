package middleware

import (
	"encoding/json"
	"net/http"
)

// failure mirrors the handler envelope so middleware rejections look like
// any other failed call to clients.
type failure struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(failure{Message: msg})
}
