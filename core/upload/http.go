package upload

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ankit-chaubey/docsurgery/core"
)

// FormField is the multipart field carrying the file.
const FormField = "file"

type uploadResponse struct {
	*File
	Key string `json:"key"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPHandler serves POST /upload. The request body is read through the
// hook chunk by chunk, so oversized files are refused without buffering
// them whole.
func NewHTTPHandler(hook *Hook, sink Sink) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
			return
		}
		mr, err := r.MultipartReader()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "expected multipart form data"})
			return
		}
		for {
			part, err := mr.NextPart()
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing form field " + FormField})
				return
			}
			if part.FormName() != FormField {
				part.Close()
				continue
			}

			ct := part.Header.Get("Content-Type")
			if ct == "" || ct == core.TypeOctetStream {
				ct = core.GuessContentType(part.FileName())
			}
			f, err := hook.Process(part.FileName(), ct, part)
			part.Close()
			if err != nil {
				var ae *AbortError
				switch {
				case IsTooLarge(err):
					errors.As(err, &ae)
					writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: ae.Message})
				case errors.As(err, &ae):
					writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ae.Message})
				default:
					writeJSON(w, http.StatusBadRequest, errorResponse{Error: "upload interrupted"})
				}
				return
			}

			key, err := sink.Store(r.Context(), f)
			if err != nil {
				hook.logger.Error("storing upload failed", "name", f.Name, "error", err)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "file could not be stored"})
				return
			}
			writeJSON(w, http.StatusCreated, uploadResponse{File: f, Key: key})
			return
		}
	})
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
