package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"subject-rag/internal/db"
	"subject-rag/internal/parser"
	"subject-rag/internal/rag"
)

// Server exposes the pipeline over HTTP. Content outcomes (no documents, no
// information, generation failure) always come back as a 200 with a
// well-formed answer body; transport errors are reserved for malformed
// requests and missing subjects.
type Server struct {
	rag       *rag.Service
	meta      *bun.DB // nil when no metadata store is configured
	uploadDir string
}

func New(ragService *rag.Service, meta *bun.DB, uploadDir string) *Server {
	return &Server{rag: ragService, meta: meta, uploadDir: uploadDir}
}

type createSubjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type uploadResponse struct {
	Message          string `json:"message"`
	DocumentID       int64  `json:"document_id,omitempty"`
	FragmentsIndexed int    `json:"fragments_indexed"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// Routes wires up the API.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /subjects", s.handleCreateSubject)
	mux.HandleFunc("GET /subjects", s.handleListSubjects)
	mux.HandleFunc("GET /subjects/{id}", s.handleGetSubject)
	mux.HandleFunc("POST /subjects/{id}/documents", s.handleUploadDocument)
	mux.HandleFunc("GET /subjects/{id}/documents", s.handleListDocuments)
	mux.HandleFunc("POST /subjects/{id}/chat", s.handleChat)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}

func (s *Server) handleCreateSubject(w http.ResponseWriter, r *http.Request) {
	if s.meta == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store not configured")
		return
	}
	var req createSubjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	subject, err := db.CreateSubject(r.Context(), s.meta, req.Name, req.Description)
	if errors.Is(err, db.ErrDuplicateSubject) {
		writeError(w, http.StatusBadRequest, "Subject already exists")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Error creating subject")
		writeError(w, http.StatusInternalServerError, "failed to create subject")
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleListSubjects(w http.ResponseWriter, r *http.Request) {
	if s.meta == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store not configured")
		return
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}

	subjects, err := db.ListSubjects(r.Context(), s.meta, offset, limit)
	if err != nil {
		log.Error().Err(err).Msg("Error listing subjects")
		writeError(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}
	if subjects == nil {
		subjects = []db.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	if s.meta == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store not configured")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject id")
		return
	}

	subject, err := db.GetSubject(r.Context(), s.meta, id)
	if errors.Is(err, db.ErrSubjectNotFound) {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Error fetching subject")
		writeError(w, http.StatusInternalServerError, "failed to fetch subject")
		return
	}
	writeJSON(w, http.StatusOK, subject)
}

func (s *Server) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	if err := s.requireSubject(r, subjectID); err != nil {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	log.Info().Str("subject", subjectID).Str("file", header.Filename).Msg("Uploading document")

	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	// Saved under a subject-prefixed name so repeated filenames across
	// subjects do not clash on disk.
	savedPath := filepath.Join(s.uploadDir, subjectID+"_"+filepath.Base(header.Filename))
	out, err := os.Create(savedPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	out.Close()

	text, err := parser.ExtractText(savedPath)
	if errors.Is(err, parser.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Error extracting document text")
		writeError(w, http.StatusInternalServerError, "failed to extract document text")
		return
	}

	count, err := s.rag.Ingest(r.Context(), subjectID, text, header.Filename)
	if err != nil {
		log.Error().Err(err).Str("file", header.Filename).Msg("Error ingesting document")
		writeError(w, http.StatusInternalServerError, "failed to index document")
		return
	}

	resp := uploadResponse{
		Message:          "Document uploaded and processed successfully",
		FragmentsIndexed: count,
	}
	if s.meta != nil {
		id, err := strconv.ParseInt(subjectID, 10, 64)
		if err == nil {
			doc, err := db.RecordDocument(r.Context(), s.meta, id, header.Filename)
			if err != nil {
				log.Error().Err(err).Msg("Error recording document upload")
			} else {
				resp.DocumentID = doc.ID
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.meta == nil {
		writeError(w, http.StatusServiceUnavailable, "metadata store not configured")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid subject id")
		return
	}
	if _, err := db.GetSubject(r.Context(), s.meta, id); err != nil {
		if errors.Is(err, db.ErrSubjectNotFound) {
			writeError(w, http.StatusNotFound, "Subject not found")
			return
		}
		log.Error().Err(err).Msg("Error fetching subject")
		writeError(w, http.StatusInternalServerError, "failed to fetch subject")
		return
	}

	docs, err := db.ListDocuments(r.Context(), s.meta, id)
	if err != nil {
		log.Error().Err(err).Msg("Error listing documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []db.Document{}
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	subjectID := r.PathValue("id")
	if err := s.requireSubject(r, subjectID); err != nil {
		writeError(w, http.StatusNotFound, "Subject not found")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	log.Info().Str("subject", subjectID).Str("question", req.Question).Msg("Chat request")

	answer, err := s.rag.Answer(r.Context(), subjectID, req.Question)
	if err != nil {
		// Only infrastructure failures (embedding, index) reach this branch;
		// content outcomes are already folded into the answer.
		log.Error().Err(err).Str("subject", subjectID).Msg("Error answering question")
		writeError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// requireSubject checks subject existence against the metadata store when one
// is configured. Without a store the id is accepted as-is.
func (s *Server) requireSubject(r *http.Request, subjectID string) error {
	if s.meta == nil {
		return nil
	}
	id, err := strconv.ParseInt(subjectID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid subject id %q", subjectID)
	}
	_, err = db.GetSubject(r.Context(), s.meta, id)
	return err
}
