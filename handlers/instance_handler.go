package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/autodock-deploy/services"
)

// InstanceHandler exposes compute instance operations over HTTP
type InstanceHandler struct {
	instances *services.InstanceService
}

func NewInstanceHandler(instances *services.InstanceService) *InstanceHandler {
	return &InstanceHandler{instances: instances}
}

// List returns all managed instances
func (h *InstanceHandler) List(c *gin.Context) {
	infos, err := h.instances.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instances": infos,
		"count":     len(infos),
	})
}

// Get returns one instance's provider-side state
func (h *InstanceHandler) Get(c *gin.Context) {
	info, err := h.instances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, info)
}

// Sync reconciles tracked instance statuses against live provider state
func (h *InstanceHandler) Sync(c *gin.Context) {
	changes, err := h.instances.Sync(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	if changes == nil {
		changes = []services.StatusChange{}
	}
	message := "All statuses already in sync"
	if len(changes) > 0 {
		message = strconv.Itoa(len(changes)) + " instance(s) updated"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"changes": changes,
		"message": message,
	})
}

// Stop stops a running instance
func (h *InstanceHandler) Stop(c *gin.Context) {
	h.lifecycle(c, h.instances.Stop, "stopping")
}

// Start starts a stopped instance
func (h *InstanceHandler) Start(c *gin.Context) {
	h.lifecycle(c, h.instances.Start, "starting")
}

// Terminate terminates an instance permanently
func (h *InstanceHandler) Terminate(c *gin.Context) {
	h.lifecycle(c, h.instances.Terminate, "terminating")
}

func (h *InstanceHandler) lifecycle(c *gin.Context, op func(ctx context.Context, id string) error, verb string) {
	id := c.Param("id")
	if err := op(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"instanceId": id,
		"message":    "Instance " + verb,
	})
}

// ContainerLogs fetches recent output from a container on the instance
func (h *InstanceHandler) ContainerLogs(c *gin.Context) {
	tail, _ := strconv.Atoi(c.DefaultQuery("tail", "100"))
	logs, err := h.instances.ContainerLogs(c.Request.Context(), c.Param("id"), c.Param("container"), tail)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"instanceId": c.Param("id"),
		"container":  c.Param("container"),
		"logs":       logs,
	})
}

// ContainerStatus inspects a container on the instance
func (h *InstanceHandler) ContainerStatus(c *gin.Context) {
	status, err := h.instances.ContainerStatus(c.Request.Context(), c.Param("id"), c.Param("container"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, status)
}
