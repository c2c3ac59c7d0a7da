package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

type M map[string]interface{}

// RespondWithError writes the {"message": ...} body every non-2xx response carries.
func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, M{"success": false, "message": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("RespondWithJSON encode error: %v", err)
	}
}

// DecodeJSON reads a request body capped at 1 MB into v.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}

// RespondWithErrorFields adds extra fields next to the message.
func RespondWithErrorFields(w http.ResponseWriter, code int, msg string, fields M) {
	body := M{"success": false, "message": msg}
	for k, v := range fields {
		body[k] = v
	}
	RespondWithJSON(w, code, body)
}
