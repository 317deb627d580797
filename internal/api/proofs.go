package api

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/starford/fehu/internal/artifacts"
)

const maxUploadBytes = 20 << 20 // 20 MB

// ProofHandler accepts proof file uploads (shipment and payment proofs).
// The returned ref is what callers pass to the receive/return actions; if
// the transition later rolls back, the loan service asks the artifact
// store to delete the file again.
type ProofHandler struct {
	store artifacts.Store
}

// NewProofHandler creates a handler backed by the given artifact store.
func NewProofHandler(store artifacts.Store) *ProofHandler {
	return &ProofHandler{store: store}
}

// Upload handles POST /proofs (multipart/form-data, field "file").
func (h *ProofHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	// Refs are server-generated; the original filename only contributes
	// its extension, so uploads can never collide or traverse.
	ref := uuid.NewString() + filepath.Ext(filepath.Base(header.Filename))
	if err := h.store.Write(ref, data); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody("failed to store proof"))
		return
	}

	writeJSON(w, http.StatusCreated, ProofUploadResponse{Ref: ref, Size: int64(len(data))})
}
