package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/jstittsworth/fantasy-advisor/internal/jobs"
	"github.com/jstittsworth/fantasy-advisor/pkg/utils"
)

type JobRunner interface {
	Trigger(name string) error
	Status() []jobs.JobStatus
}

type JobHandler struct {
	runner JobRunner
}

func NewJobHandler(runner JobRunner) *JobHandler {
	return &JobHandler{runner: runner}
}

// ListJobs handles GET /jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	statuses := h.runner.Status()
	utils.List(c, statuses)
}

// TriggerJob handles POST /jobs/:name/run
func (h *JobHandler) TriggerJob(c *gin.Context) {
	name := c.Param("name")
	if err := h.runner.Trigger(name); err != nil {
		respondError(c, err, "Job not found")
		return
	}
	utils.Accepted(c, gin.H{"job": name, "status": "started"})
}
