package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/aegis/internal/aegis/biz"
	"github.com/kart-io/aegis/internal/aegis/store"
)

// queryTimeout 单次问答的处理超时。
const queryTimeout = 60 * time.Second

// RAGHandler handles knowledge base HTTP requests.
type RAGHandler struct {
	service biz.RAGService
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.RAGService) *RAGHandler {
	return &RAGHandler{service: service}
}

// IndexRequest represents a document upload request.
type IndexRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// Index indexes an uploaded document.
func (h *RAGHandler) Index(c *gin.Context) {
	var req IndexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := h.service.IndexText(c.Request.Context(), req.Title, req.Content)
	if err != nil {
		if store.IsDimensionMismatch(err) {
			writeError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(c, doc)
}

// QueryRequest represents a knowledge base query request.
type QueryRequest struct {
	Question string `json:"question" binding:"required"`
}

// Query performs a knowledge base query.
func (h *RAGHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result, err := h.service.Query(ctx, req.Question)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			writeError(c, http.StatusRequestTimeout, "query timeout: the request took too long to process")
			return
		}
		if store.IsDimensionMismatch(err) {
			writeError(c, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(c, result)
}

// Stats returns knowledge base statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(c, stats)
}

// Reset clears the knowledge base and the query cache.
func (h *RAGHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}
	writeSuccess(c, gin.H{"message": "knowledge base cleared"})
}
