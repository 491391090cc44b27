package apihandlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"munin/internal/models"
	"munin/internal/tasks"
)

// pushEvent is the subset of the GitHub push payload the handler reads.
type pushEvent struct {
	Ref        string `json:"ref"`
	HeadCommit struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"head_commit"`
}

// GitHubWebhookHandler accepts GitHub push events and queues a pipeline run
// for pushes to the watched branch. Every accepted request is answered with
// 2xx so GitHub does not redeliver; the body says what happened.
func (h *APIHandler) GitHubWebhookHandler(c *gin.Context) {
	secret := h.App.Config.Webhook.Secret
	if secret == "" {
		NotConfigured(c, "Webhook secret is not configured")
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		BadRequest(c, "Failed to read request body: "+err.Error())
		return
	}

	if !verifySignature(body, c.GetHeader("X-Hub-Signature-256"), secret) {
		log.Warn("github webhook signature verification failed")
		Unauthorized(c, "Invalid webhook signature")
		return
	}

	if event := c.GetHeader("X-GitHub-Event"); event != "push" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": fmt.Sprintf("event %q is not handled", event)})
		return
	}

	var payload pushEvent
	if err := json.Unmarshal(body, &payload); err != nil {
		BadRequest(c, "Invalid webhook payload: "+err.Error())
		return
	}

	branch := h.App.Config.Repo.Branch
	if payload.Ref != "refs/heads/"+branch {
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": fmt.Sprintf("ref %q is not branch %q", payload.Ref, branch)})
		return
	}

	// The pipeline's own publish commit comes back as a push event. Reacting
	// to it would loop.
	marker := h.App.Config.Publish.SkipMarker
	if marker != "" && strings.Contains(payload.HeadCommit.Message, marker) {
		log.WithField("commit", payload.HeadCommit.ID).Info("push carries the skip marker, ignoring")
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "head commit carries the skip marker"})
		return
	}

	info, err := h.App.JobClient.EnqueuePipelineRun(c.Request.Context(), models.TriggerPush)
	if err != nil {
		if errors.Is(err, models.ErrRunExists) {
			c.JSON(http.StatusOK, gin.H{"status": "duplicate", "reason": "a run is already pending or active"})
			return
		}
		Internal(c, fmt.Sprintf("GitHubWebhookHandler: failed to enqueue run: %v", err))
		return
	}

	queued, err := tasks.ParsePipelineRunPayload(info.Payload)
	if err != nil {
		Internal(c, fmt.Sprintf("GitHubWebhookHandler: failed to decode queued task: %v", err))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "run_id": queued.RunID})
}

// verifySignature checks the X-Hub-Signature-256 header against the payload.
// GitHub sends "sha256=<hex hmac>".
func verifySignature(payload []byte, headerSignature, secret string) bool {
	if !strings.HasPrefix(headerSignature, "sha256=") {
		return false
	}
	provided := strings.TrimPrefix(headerSignature, "sha256=")

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant time comparison to prevent timing attacks.
	return hmac.Equal([]byte(provided), []byte(expected))
}
