package dashboard

import (
	"encoding/json"
	"net/http"
)

// errorResponse mirrors the teacher's httputil.ErrorResponse envelope,
// trimmed to the fields this gateway actually uses.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: http.StatusText(status), Message: message})
}
