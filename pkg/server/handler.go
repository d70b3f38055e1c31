package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Somekindofa/research-paper-rag/pkg/pipeline"
)

type Handler struct {
	Service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{Service: s}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/health", h.health)

	api := r.Group("/api")
	{
		api.POST("/chat", h.chat)
		api.POST("/index", h.startIndexing)
		api.GET("/indexing-status", h.indexingStatus)
		api.GET("/status", h.status)
		api.GET("/models", h.listModels)
	}
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message cannot be empty"})
		return
	}
	if req.Mode != "" && req.Mode != string(pipeline.ModeRAG) && req.Mode != string(pipeline.ModeSimple) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode must be rag or simple"})
		return
	}
	if t := req.RelevanceThreshold; t != 0 && (t < 50 || t > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "relevance_threshold must be between 50 and 100"})
		return
	}
	if req.NumDocs < 0 || req.NumDocs > 20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "num_docs must be between 1 and 20"})
		return
	}

	result, err := h.Service.Chat(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, pipeline.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) startIndexing(c *gin.Context) {
	status := h.Service.StartIndexing(c.Request.Context())
	c.JSON(http.StatusAccepted, status)
}

func (h *Handler) indexingStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.Service.IndexingStatus())
}

func (h *Handler) status(c *gin.Context) {
	status, err := h.Service.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) listModels(c *gin.Context) {
	models, err := h.Service.Models(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, models)
}
