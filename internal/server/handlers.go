package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mindpalace/sensei/internal/auth"
	"github.com/mindpalace/sensei/internal/extract"
	"github.com/mindpalace/sensei/internal/ingest"
	"github.com/mindpalace/sensei/internal/models"
	"github.com/mindpalace/sensei/internal/storage"
	apperrors "github.com/mindpalace/sensei/pkg/errors"
)

// errorResponse is the JSON error envelope for every endpoint.
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Step    string `json:"step,omitempty"`
	Details string `json:"details,omitempty"`
	Stack   string `json:"stack,omitempty"`
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, err error) {
	ae := apperrors.AsAppError(err)
	resp := errorResponse{
		Success: false,
		Error:   ae.Message,
		Step:    ae.Step,
	}
	if ae.Cause != nil {
		resp.Details = ae.Cause.Error()
		if s.config.Debug {
			resp.Stack = fmt.Sprintf("%+v", ae.Cause)
		}
	}
	s.respondJSON(w, ae.HTTPStatus(), resp)
}

func unauthorized(err error) error {
	return apperrors.NewUnauthorized("authentication required").WithCause(err)
}

func (s *Server) userID(r *http.Request) string {
	id, _ := auth.UserID(r.Context())
	return id
}

type chatRequest struct {
	Messages []models.ChatMessage `json:"messages"`
}

// handleChat streams the tutor response as plain text. The optional
// x-request-id header deduplicates retried requests.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	userID := s.userID(r)
	requestID := r.Header.Get("x-request-id")

	flusher, _ := w.(http.Flusher)
	started := false
	onDelta := func(delta string) {
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("X-Accel-Buffering", "no")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := io.WriteString(w, delta); err != nil {
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	result, err := s.orchestrator.Chat(r.Context(), userID, requestID, req.Messages, onDelta)
	if err != nil {
		if started {
			// Headers are gone; the best we can do is log and cut the stream.
			s.logger.Error("chat failed mid-stream",
				zap.String("user_id", userID),
				zap.Error(err))
			return
		}
		s.logger.Error("chat failed", zap.String("user_id", userID), zap.Error(err))
		s.respondError(w, err)
		return
	}
	if !started {
		// Empty model output still yields a valid, empty 200 stream.
		onDelta("")
	}
	s.logger.Debug("chat turn complete",
		zap.String("user_id", userID),
		zap.Int("steps", len(result.Steps)),
		zap.Bool("replayed", result.Replayed))
}

type documentResponse struct {
	Success  bool                `json:"success"`
	Document *models.ContentItem `json:"document"`
	Message  string              `json:"message"`
	Version  int                 `json:"version"`
	IsUpdate bool                `json:"isUpdate"`
	Chunks   int                 `json:"chunks"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := s.config.Ingest.MaxFileBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1024)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid multipart form").WithCause(err))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, apperrors.NewValidation("missing file field").WithCause(err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to read upload").WithCause(err))
		return
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	// Strip parameters such as "; charset=utf-8" before dispatch.
	if parsed, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = parsed
	}

	res, err := s.pipeline.IngestDocument(r.Context(), s.userID(r), header.Filename, mimeType, data)
	if err != nil {
		s.respondError(w, ingestError(err))
		return
	}
	isUpdate := res.Item.Version > 1
	message := "Document ingested"
	if isUpdate {
		message = fmt.Sprintf("Document updated to version %d", res.Item.Version)
	}
	s.respondJSON(w, http.StatusCreated, documentResponse{
		Success:  true,
		Document: res.Item,
		Message:  message,
		Version:  res.Item.Version,
		IsUpdate: isUpdate,
		Chunks:   res.ChunkCount,
	})
}

// ingestError maps pipeline failures onto the error taxonomy.
func ingestError(err error) error {
	var unsupported *extract.UnsupportedTypeError
	switch {
	case errors.Is(err, ingest.ErrFileTooLarge):
		return apperrors.NewValidation("file exceeds the maximum allowed size").WithCause(err)
	case errors.As(err, &unsupported):
		return apperrors.NewValidation(unsupported.Error()).WithCause(err)
	case errors.Is(err, ingest.ErrEmptyContent):
		return apperrors.NewValidation("no text content could be extracted").WithCause(err)
	default:
		return apperrors.NewExternal("ingestion failed").WithCause(err)
	}
}

func (s *Server) handleGetGraph(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	items, err := s.storage.ListContentItems(r.Context(), userID)
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to list content").WithCause(err))
		return
	}
	edges, err := s.edges.ListEdges(r.Context(), userID)
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to list relationships").WithCause(err))
		return
	}

	data := models.GraphData{
		Nodes:         make([]models.GraphNode, 0, len(items)),
		Relationships: make([]models.GraphEdge, 0, len(edges)),
	}
	for _, item := range items {
		data.Nodes = append(data.Nodes, models.GraphNode{
			ID:    item.ID,
			Type:  string(item.Kind),
			Label: item.Title,
			Metadata: map[string]interface{}{
				"version":    item.Version,
				"created_at": item.CreatedAt,
			},
		})
	}
	for _, e := range edges {
		data.Relationships = append(data.Relationships, models.GraphEdge{
			Source:   e.SourceID,
			Target:   e.TargetID,
			Type:     e.RelationshipType,
			Metadata: e.Metadata,
		})
	}
	s.respondJSON(w, http.StatusOK, data)
}

type createEdgeRequest struct {
	SourceID string `json:"sourceId" validate:"required"`
	TargetID string `json:"targetId" validate:"required"`
	Type     string `json:"type" validate:"required,oneof=similar_to related references"`
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var req createEdgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	userID := s.userID(r)

	// Both endpoints must belong to the caller.
	for _, id := range []string{req.SourceID, req.TargetID} {
		if _, err := s.storage.GetContentItem(r.Context(), userID, id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				s.respondError(w, apperrors.NewNotFound(fmt.Sprintf("content item %s not found", id)))
				return
			}
			s.respondError(w, apperrors.NewInternal("failed to resolve content item").WithCause(err))
			return
		}
	}

	edge := &models.RelationshipEdge{
		UserID:           userID,
		SourceID:         req.SourceID,
		TargetID:         req.TargetID,
		RelationshipType: req.Type,
	}
	if err := s.edges.CreateEdge(r.Context(), edge); err != nil {
		s.respondError(w, apperrors.NewInternal("failed to create relationship").WithCause(err))
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "edge": edge})
}

type noteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	res, err := s.pipeline.IngestNote(r.Context(), s.userID(r), req.Title, req.Content)
	if err != nil {
		s.respondError(w, ingestError(err))
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "note": res.Item})
}

type urlRequest struct {
	URL     string `json:"url" validate:"required,url"`
	Title   string `json:"title"`
	Content string `json:"content" validate:"required"`
}

func (s *Server) handleCreateURL(w http.ResponseWriter, r *http.Request) {
	var req urlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	res, err := s.pipeline.IngestURL(r.Context(), s.userID(r), req.URL, req.Title, req.Content)
	if err != nil {
		s.respondError(w, ingestError(err))
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"success": true, "url": res.Item})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := s.userID(r)
	profile, err := s.storage.GetProfile(r.Context(), userID)
	if errors.Is(err, storage.ErrNotFound) {
		profile = &models.UserProfile{UserID: userID}
	} else if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to load profile").WithCause(err))
		return
	}
	profile.ApplyDefaults()
	s.respondJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	LearningStyle string   `json:"learning_style" validate:"omitempty,oneof=general visual auditory reading kinesthetic"`
	Difficulty    string   `json:"difficulty" validate:"omitempty,oneof=beginner moderate advanced"`
	Interests     []string `json:"interests" validate:"max=20,dive,min=1,max=100"`
}

func (s *Server) handlePutProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	profile := &models.UserProfile{
		UserID:        s.userID(r),
		LearningStyle: req.LearningStyle,
		Difficulty:    req.Difficulty,
		Interests:     req.Interests,
	}
	profile.ApplyDefaults()
	// Saving a profile enrolls the user; chat refuses identities that have
	// never been enrolled.
	if _, err := s.storage.GetUser(r.Context(), profile.UserID); errors.Is(err, storage.ErrNotFound) {
		if err := s.storage.CreateUser(r.Context(), &models.User{ID: profile.UserID}); err != nil {
			s.respondError(w, apperrors.NewInternal("failed to create user").WithCause(err))
			return
		}
	} else if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to load user").WithCause(err))
		return
	}
	if err := s.storage.UpsertProfile(r.Context(), profile); err != nil {
		s.respondError(w, apperrors.NewInternal("failed to save profile").WithCause(err))
		return
	}
	s.respondJSON(w, http.StatusOK, profile)
}

type searchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit" validate:"omitempty,min=1,max=100"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, apperrors.NewValidation("invalid request body").WithCause(err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	hits, err := s.engine.Search(r.Context(), s.userID(r), req.Query, req.Limit)
	if err != nil {
		s.respondError(w, apperrors.NewExternal("search failed").WithCause(err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "results": hits})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.pipeline.DeleteContent(r.Context(), s.userID(r), id)
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, apperrors.NewNotFound("document not found"))
		return
	}
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to delete document").WithCause(err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true, "status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	itemCount, err := s.storage.CountContentItems(ctx)
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to count content").WithCause(err))
		return
	}
	vectorCount, err := s.vectors.Count(ctx)
	if err != nil {
		s.respondError(w, apperrors.NewInternal("failed to count vectors").WithCause(err))
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"content_items": itemCount,
		"vectors":       vectorCount,
		"config": map[string]interface{}{
			"embedding_model":      s.config.Embedding.Model,
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"llm_model":            s.config.LLM.Model,
			"chunk_size":           s.config.Ingest.ChunkSize,
			"chunk_overlap":        s.config.Ingest.ChunkOverlap,
		},
	})
}
