package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keyhouse-ops/watchdog/internal/agent/journal"
)

// GroupRequest asks for a user to be added to a group directly, outside the
// declared-state flow.
type GroupRequest struct {
	User  string `json:"user" binding:"required"`
	Group string `json:"group" binding:"required"`
}

// handleWebhook triggers a reconciliation run. Concurrent webhook deliveries
// share a single run. The run is detached from the leader request's
// lifetime: a disconnecting client must not cancel it for coalesced
// followers.
func (s *Server) handleWebhook(ctx *gin.Context) {
	runCtx := context.WithoutCancel(ctx.Request.Context())
	_, err, shared := s.sf.Do("reconcile", func() (any, error) {
		return nil, s.runner.Run(runCtx)
	})
	if err != nil {
		s.logger.Error("webhook-triggered run failed", "error", err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "synced",
		"shared": shared,
	})
}

func (s *Server) handleGroupRequest(ctx *gin.Context) {
	var req GroupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.PureJSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	if err := s.users.AddUserToGroup(ctx.Request.Context(), req.User, req.Group); err != nil {
		s.logger.Error("group request failed", "user", req.User, "group", req.Group, "error", err)
		ctx.PureJSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"user":  req.User,
		"group": req.Group,
	})
}

// handleRuns lists recent reconciliation runs, newest first.
func (s *Server) handleRuns(ctx *gin.Context) {
	runs := []journal.Run{}
	if s.jnl != nil {
		var err error
		runs, err = s.jnl.RecentRuns(20)
		if err != nil {
			ctx.PureJSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}
	}

	ctx.PureJSON(http.StatusOK, gin.H{
		"runs": runs,
	})
}

func (s *Server) handleStatus(ctx *gin.Context) {
	commit, err := s.ckpt.Load()
	if err != nil {
		ctx.PureJSON(http.StatusInternalServerError, gin.H{
			"error": err.Error(),
		})
		return
	}

	resp := gin.H{
		"checkpoint": commit,
	}

	if s.jnl != nil {
		run, err := s.jnl.LastRun()
		if err != nil {
			ctx.PureJSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}
		if run != nil {
			resp["last_run"] = run
		}
	}

	ctx.PureJSON(http.StatusOK, resp)
}
