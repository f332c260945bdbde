package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"QuoteHarvest/internal/model"
	"QuoteHarvest/internal/trainer"
)

// Predictor serves predictions and the metrics of the persisted model.
type Predictor interface {
	Predict(rows []map[string]float64) ([]float64, error)
	LoadMetrics() (*trainer.Metrics, error)
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Rows []map[string]float64 `json:"rows" binding:"required"`
}

// PredictionHandler handles model HTTP requests
type PredictionHandler struct {
	predictor Predictor
	logger    *zap.Logger
}

// NewPredictionHandler creates a new prediction handler
func NewPredictionHandler(p Predictor, logger *zap.Logger) *PredictionHandler {
	return &PredictionHandler{predictor: p, logger: logger}
}

// Predict handles next-day close predictions
// POST /predict
func (h *PredictionHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Rows) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rows must not be empty"})
		return
	}

	preds, err := h.predictor.Predict(req.Rows)
	if err != nil {
		h.logger.Error("failed to predict", zap.Error(err), zap.String("kind", model.KindOf(err)))
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "kind": model.KindOf(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictions": preds})
}

// GetMetrics returns the in-sample metrics of the last trained model
// GET /metrics
func (h *PredictionHandler) GetMetrics(c *gin.Context) {
	m, err := h.predictor.LoadMetrics()
	if err != nil {
		h.logger.Warn("failed to load metrics", zap.Error(err))
		c.JSON(http.StatusNotFound, gin.H{"error": "no trained model metrics available"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrModelLoad):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
