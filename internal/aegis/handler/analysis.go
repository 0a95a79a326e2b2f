package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/kart-io/aegis/internal/aegis/biz"
	"github.com/kart-io/aegis/internal/model"
)

// maxBatchSize 单次批量分析的告警数量上限。
const maxBatchSize = 100

// AnalysisHandler handles alert analysis HTTP requests.
type AnalysisHandler struct {
	analyzer *biz.Analyzer
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analyzer *biz.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: analyzer}
}

// RegisterValidations registers custom request validations.
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return model.Category(fl.Field().String()).Valid()
	})
}

// AnalyzeRequest represents a single alert analysis request.
type AnalyzeRequest struct {
	AlertType string            `json:"alert_type"`
	Message   string            `json:"message" binding:"required"`
	SourceIP  string            `json:"source_ip"`
	DestIP    string            `json:"dest_ip"`
	Metadata  map[string]string `json:"metadata"`
}

func (r *AnalyzeRequest) toAlert() *model.Alert {
	return &model.Alert{
		AlertType: r.AlertType,
		Message:   r.Message,
		SourceIP:  r.SourceIP,
		DestIP:    r.DestIP,
		Metadata:  r.Metadata,
	}
}

// Analyze analyzes a single alert.
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	record := h.analyzer.Analyze(c.Request.Context(), req.toAlert())
	writeSuccess(c, record)
}

// BatchAnalyzeRequest represents a batch alert analysis request.
type BatchAnalyzeRequest struct {
	Alerts []AnalyzeRequest `json:"alerts" binding:"required,min=1,dive"`
}

// AnalyzeBatch analyzes a batch of alerts concurrently.
func (h *AnalysisHandler) AnalyzeBatch(c *gin.Context) {
	var req BatchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Alerts) > maxBatchSize {
		writeError(c, http.StatusBadRequest, "batch size exceeds limit of "+strconv.Itoa(maxBatchSize))
		return
	}

	alerts := make([]*model.Alert, len(req.Alerts))
	for i := range req.Alerts {
		alerts[i] = req.Alerts[i].toAlert()
	}

	records := h.analyzer.AnalyzeBatch(c.Request.Context(), alerts)
	writeSuccess(c, records)
}

// HistoryQuery represents history listing parameters.
type HistoryQuery struct {
	Limit    int    `form:"limit"`
	Category string `form:"category" binding:"omitempty,category"`
}

// History lists analysis records from newest to oldest.
func (h *AnalysisHandler) History(c *gin.Context) {
	var query HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	records := h.analyzer.History(query.Limit)
	if query.Category != "" {
		filtered := make([]*model.AnalysisRecord, 0, len(records))
		for _, record := range records {
			if record.Route.Category == model.Category(query.Category) {
				filtered = append(filtered, record)
			}
		}
		records = filtered
	}
	writeSuccess(c, records)
}

// ClearHistory removes all analysis records.
func (h *AnalysisHandler) ClearHistory(c *gin.Context) {
	cleared := h.analyzer.ClearHistory()
	writeSuccess(c, gin.H{"cleared": cleared})
}
