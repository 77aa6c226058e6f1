package api

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/parlayforge/parlayforge/internal/aggregator"
	"github.com/parlayforge/parlayforge/internal/prediction"
	"github.com/parlayforge/parlayforge/internal/weighting"
)

// predictRequest is the body of POST /api/v1/predict
type predictRequest struct {
	Query    string   `json:"query" binding:"required"`
	Sports   []string `json:"sports" binding:"required,min=1"`
	Strategy string   `json:"strategy"`
	UserID   string   `json:"user_id"`
}

// outcomeRequest is the body of POST /api/v1/outcomes
type outcomeRequest struct {
	RequestID    uuid.UUID `json:"request_id" binding:"required"`
	Sport        string    `json:"sport" binding:"required"`
	AgentID      string    `json:"agent_id"`
	ActualResult string    `json:"actual_result"`
	Correct      *bool     `json:"correct" binding:"required"`
}

// handleRoot identifies the service
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "ParlayForge Aggregation API",
		"status":  "running",
		"time":    time.Now().UTC(),
	})
}

// handlePredict runs one aggregation request
func (s *Server) handlePredict(c *gin.Context) {
	var req predictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	sports := make([]prediction.Sport, 0, len(req.Sports))
	for _, raw := range req.Sports {
		sport, err := prediction.ParseSport(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sports = append(sports, sport)
	}

	rec, err := s.aggregator.Aggregate(c.Request.Context(), aggregator.Request{
		Query:      req.Query,
		Sports:     sports,
		StrategyID: req.Strategy,
		UserID:     req.UserID,
	})
	if err != nil {
		switch {
		case errors.Is(err, prediction.ErrUnknownStrategy), errors.Is(err, prediction.ErrUnknownSport):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, prediction.ErrNoAgentResponse):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, rec)
}

// handleReportOutcome accepts ground truth for a past request. When the
// event bus is up the report is published and applied asynchronously;
// otherwise it is applied in-process. Either way the caller gets a 202.
func (s *Server) handleReportOutcome(c *gin.Context) {
	var req outcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	sport, err := prediction.ParseSport(req.Sport)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	outcome := prediction.Outcome{
		RequestID:    req.RequestID,
		Sport:        sport,
		AgentID:      req.AgentID,
		ActualResult: req.ActualResult,
		Correct:      *req.Correct,
		ReportedAt:   time.Now().UTC(),
	}

	if s.bus != nil && s.bus.Connected() {
		if err := s.bus.PublishOutcome(c.Request.Context(), outcome); err != nil {
			s.log.Warn().Err(err).Msg("Event bus publish failed, applying outcome directly")
			if err := s.aggregator.ReportOutcome(c.Request.Context(), outcome); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}
	} else {
		if err := s.aggregator.ReportOutcome(c.Request.Context(), outcome); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"request_id": outcome.RequestID,
	})
}

// handleListAgents returns every registered agent with its health
func (s *Server) handleListAgents(c *gin.Context) {
	all := s.registry.All()
	out := make([]gin.H, 0, len(all))
	for _, agent := range all {
		health := agent.Health()
		out = append(out, gin.H{
			"agent_id":         agent.ID(),
			"sport":            agent.Sport(),
			"available":        health.Available,
			"rolling_accuracy": health.RollingAccuracy,
		})
	}
	c.JSON(http.StatusOK, gin.H{"agents": out})
}

// handleGetAgent returns one agent's health
func (s *Server) handleGetAgent(c *gin.Context) {
	sport, err := prediction.ParseSport(c.Param("sport"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	agent, err := s.registry.Get(sport)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	health := agent.Health()
	c.JSON(http.StatusOK, gin.H{
		"agent_id":         agent.ID(),
		"sport":            agent.Sport(),
		"available":        health.Available,
		"rolling_accuracy": health.RollingAccuracy,
	})
}

// handleListStrategies returns the available strategy identifiers
func (s *Server) handleListStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": s.strategies.IDs()})
}

// handleGetAccuracy returns the learner's current accuracy table
func (s *Server) handleGetAccuracy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"records": s.learner.Snapshot()})
}

// handleSetPreferences replaces one user's preference vector
func (s *Server) handleSetPreferences(c *gin.Context) {
	userID := c.Param("user_id")

	var raw map[string]float64
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "detail": err.Error()})
		return
	}

	vector := make(weighting.PreferenceVector, len(raw))
	for sportName, score := range raw {
		sport, err := prediction.ParseSport(sportName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		vector[sport] = score
	}

	if err := s.prefs.Set(userID, vector); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": vector})
}

// handleGetPreferences returns one user's preference vector
func (s *Server) handleGetPreferences(c *gin.Context) {
	userID := c.Param("user_id")

	vector, ok := s.prefs.Get(userID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preferences recorded for user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "preferences": vector})
}

// handleImportPreferences bulk-loads preference vectors from a JSON or
// YAML body
func (s *Server) handleImportPreferences(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	imported, err := s.prefs.Import(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "imported": imported})
		return
	}

	c.JSON(http.StatusOK, gin.H{"imported": imported})
}

// handleExportPreferences dumps every preference vector as YAML
func (s *Server) handleExportPreferences(c *gin.Context) {
	data, err := s.prefs.Export()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Data(http.StatusOK, "application/yaml", data)
}

// handleGetHealth is the load balancer health check
func (s *Server) handleGetHealth(c *gin.Context) {
	busStatus := "disabled"
	if s.bus != nil {
		if s.bus.Connected() {
			busStatus = "connected"
		} else {
			busStatus = "disconnected"
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"time":       time.Now().UTC(),
		"uptime":     time.Since(s.startTime).Seconds(),
		"goroutines": runtime.NumGoroutine(),
		"components": gin.H{
			"event_bus":  busStatus,
			"agents":     len(s.registry.All()),
			"ws_clients": s.hub.ClientCount(),
		},
	})
}
