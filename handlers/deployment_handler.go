package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/autodock-deploy/dto"
	"github.com/autodock-deploy/models"
	"github.com/autodock-deploy/repositories"
	"github.com/autodock-deploy/services"
)

// DeploymentHandler exposes the deployment workflow over HTTP
type DeploymentHandler struct {
	orchestrator *services.OrchestratorService
	deployments  *repositories.DeploymentRepository
}

func NewDeploymentHandler(orchestrator *services.OrchestratorService) *DeploymentHandler {
	return &DeploymentHandler{
		orchestrator: orchestrator,
		deployments:  repositories.NewDeploymentRepository(),
	}
}

// Create accepts a deployment request and runs it in the background.
// The response is immediate; progress is queryable and streamed.
func (h *DeploymentHandler) Create(c *gin.Context) {
	var req dto.DeployRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	log.Println("Starting deployment for:", req.RepoURL)

	c.JSON(http.StatusAccepted, dto.DeployAccepted{
		Status:  "accepted",
		Message: "Deployment started, processing in background...",
		RepoURL: req.RepoURL,
	})

	go func() {
		result := h.orchestrator.Deploy(context.Background(), models.DeployRequest{
			RepoURL:       req.RepoURL,
			InstanceName:  req.InstanceName,
			ContainerPort: req.ContainerPort,
			HostPort:      req.HostPort,
		})
		if result.Success {
			log.Printf("Deployment %s finished: %s", result.DeploymentID, result.URL)
		} else {
			log.Printf("Deployment %s failed: %s", result.DeploymentID, result.Error)
		}
	}()
}

// Get returns one deployment by durable id or short id
func (h *DeploymentHandler) Get(c *gin.Context) {
	dep, err := h.orchestrator.GetStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Deployment not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, dto.NewDeploymentStatusResponse(dep))
}

// List returns recent deployments, newest first
func (h *DeploymentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	deps, err := h.orchestrator.ListDeployments(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	summaries := make([]dto.DeploymentSummary, 0, len(deps))
	for _, d := range deps {
		summaries = append(summaries, dto.NewDeploymentSummary(d))
	}
	c.JSON(http.StatusOK, gin.H{
		"deployments": summaries,
		"count":       len(summaries),
	})
}

// Logs returns a deployment's log lines, optionally filtered by level
func (h *DeploymentHandler) Logs(c *gin.Context) {
	dep, err := h.orchestrator.GetStatus(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "Deployment not found",
		})
		return
	}

	level := models.LogLevel(c.Query("level"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "500"))

	logs, err := h.deployments.Logs(dep.ID, level, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	views := make([]dto.LogView, 0, len(logs))
	for _, l := range logs {
		views = append(views, dto.LogView{
			Level:     string(l.Level),
			Message:   l.Message,
			Timestamp: l.Timestamp,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"deploymentId": dep.ShortID,
		"logs":         views,
		"count":        len(views),
	})
}
