package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/autodock-deploy/dto"
	"github.com/autodock-deploy/services"
)

// ApplicationHandler exposes application queries over HTTP
type ApplicationHandler struct {
	apps *services.ApplicationService
}

func NewApplicationHandler(apps *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{apps: apps}
}

// List returns every application of the default tenant
func (h *ApplicationHandler) List(c *gin.Context) {
	applications, err := h.apps.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"applications": applications,
		"count":        len(applications),
	})
}

// Get returns one application with its recent deployments
func (h *ApplicationHandler) Get(c *gin.Context) {
	application, deployments, err := h.apps.Get(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Application not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	summaries := make([]dto.DeploymentSummary, 0, len(deployments))
	for _, d := range deployments {
		summaries = append(summaries, dto.NewDeploymentSummary(d))
	}
	c.JSON(http.StatusOK, gin.H{
		"application": application,
		"deployments": summaries,
	})
}

// Stop stops the application's container on its host
func (h *ApplicationHandler) Stop(c *gin.Context) {
	h.lifecycle(c, h.apps.Stop, "stopped")
}

// Remove removes the application's container and marks it deleted
func (h *ApplicationHandler) Remove(c *gin.Context) {
	h.lifecycle(c, h.apps.Remove, "removed")
}

func (h *ApplicationHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id string) error, verb string) {
	id := c.Param("id")
	if err := op(c.Request.Context(), id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "Application not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"applicationId": id,
		"message":       "Application " + verb,
	})
}
