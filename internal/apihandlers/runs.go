package apihandlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"munin/internal/models"
	"munin/internal/store"
	"munin/internal/tasks"
)

// TriggerRunRequest is the JSON body of POST /api/v1/runs. The trigger kind
// defaults to manual when the body is empty.
type TriggerRunRequest struct {
	Trigger string `json:"trigger"`
}

// TriggerRunResponse describes the queued run.
type TriggerRunResponse struct {
	RunID   string `json:"run_id"`
	Trigger string `json:"trigger"`
	Queue   string `json:"queue"`
	State   string `json:"state"`
}

func (h *APIHandler) TriggerRunHandler(c *gin.Context) {
	req := TriggerRunRequest{Trigger: models.TriggerManual}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			BadRequest(c, "Invalid request body: "+err.Error())
			return
		}
		if req.Trigger == "" {
			req.Trigger = models.TriggerManual
		}
	}

	info, err := h.App.JobClient.EnqueuePipelineRun(c.Request.Context(), req.Trigger)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrRunExists):
			Conflict(c, "A pipeline run is already pending or active")
		case errors.Is(err, models.ErrValidation):
			BadRequest(c, err.Error())
		default:
			Internal(c, fmt.Sprintf("TriggerRunHandler: failed to enqueue run: %v", err))
		}
		return
	}

	payload, err := tasks.ParsePipelineRunPayload(info.Payload)
	if err != nil {
		Internal(c, fmt.Sprintf("TriggerRunHandler: failed to decode queued task: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"data": TriggerRunResponse{
		RunID:   payload.RunID,
		Trigger: payload.Trigger,
		Queue:   info.Queue,
		State:   info.State.String(),
	}})
}

func (h *APIHandler) ListRunsHandler(c *gin.Context) {
	limit := 20
	offset := 0
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		} else {
			BadRequest(c, "invalid limit: "+l)
			return
		}
	}
	if o := c.Query("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		} else {
			BadRequest(c, "invalid offset: "+o)
			return
		}
	}

	runs, err := h.App.RunStore.ListRuns(c.Request.Context(), limit, offset)
	if err != nil {
		Internal(c, fmt.Sprintf("ListRunsHandler: failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*models.Run{}
	}

	c.JSON(http.StatusOK, gin.H{"items": runs})
}

// GetRunHandler handles GET requests for a single run by its run ID.
func (h *APIHandler) GetRunHandler(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		BadRequest(c, fmt.Sprintf("Invalid run ID format: %s", c.Param("id")))
		return
	}

	run, err := h.App.RunStore.GetRun(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			NotFound(c, fmt.Sprintf("Run not found with ID: %s", runID))
		} else {
			Internal(c, fmt.Sprintf("GetRunHandler: failed to retrieve run: %v", err))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": run})
}
