package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/VideoCall/internal/app/call"
	"github.com/dkeye/VideoCall/internal/app/orch"
	"github.com/dkeye/VideoCall/internal/app/queue"
	"github.com/dkeye/VideoCall/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// One orchestrator drives a single local session, so the API serves one
// local user at a time.
var errLocalUserBusy = errors.New("another local user is in a call")

type controller struct {
	orch    *orch.Orchestrator
	limiter *JoinRateLimiter
}

type callView struct {
	RoomID       domain.RoomID   `json:"roomId"`
	Ended        bool            `json:"ended"`
	Participants []domain.Member `json:"participants"`
}

func viewOf(c *call.Call) callView {
	return callView{RoomID: c.ID(), Ended: c.IsEnded(), Participants: c.Members()}
}

func (ctl *controller) createCall(c *gin.Context) {
	created := ctl.orch.CreateCall()
	c.JSON(http.StatusCreated, viewOf(created))
}

func (ctl *controller) listCalls(c *gin.Context) {
	calls := ctl.orch.GetAllCalls()
	out := make([]callView, 0, len(calls))
	for _, cl := range calls {
		out = append(out, viewOf(cl))
	}
	c.JSON(http.StatusOK, out)
}

func (ctl *controller) getCall(c *gin.Context) {
	cl, ok := ctl.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(cl))
}

func (ctl *controller) joinCall(c *gin.Context) {
	uid := userOf(c)
	if !ctl.limiter.Allow(uid) {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many join attempts"})
		return
	}
	cl, ok := ctl.lookup(c)
	if !ok {
		return
	}
	if cl.IsEnded() {
		c.JSON(http.StatusConflict, gin.H{"error": domain.ErrCallEnded.Error()})
		return
	}
	if ctl.localBusy(uid) {
		c.JSON(http.StatusConflict, gin.H{"error": errLocalUserBusy.Error()})
		return
	}
	if !ctl.settle(c, ctl.orch.JoinCall(cl.ID(), uid)) {
		return
	}
	log.Info().Str("module", "adapters.http").Str("room", string(cl.ID())).Str("user", string(uid)).Msg("join requested")
	c.JSON(http.StatusOK, viewOf(cl))
}

func (ctl *controller) leaveCall(c *gin.Context) {
	cl, ok := ctl.lookup(c)
	if !ok {
		return
	}
	if !ctl.settle(c, ctl.orch.LeaveCall(cl.ID(), userOf(c))) {
		return
	}
	c.JSON(http.StatusOK, viewOf(cl))
}

func (ctl *controller) endCall(c *gin.Context) {
	cl, ok := ctl.lookup(c)
	if !ok {
		return
	}
	if !ctl.settle(c, ctl.orch.EndCall(cl.ID())) {
		return
	}
	c.Status(http.StatusNoContent)
}

// localBusy reports whether a different local user still holds a
// participant in some call.
func (ctl *controller) localBusy(uid domain.UserID) bool {
	local := ctl.orch.LocalUserID()
	if local == "" || local == uid {
		return false
	}
	for _, cl := range ctl.orch.GetAllCalls() {
		if p, ok := cl.Participant(local); ok && p.IsLocal() {
			return true
		}
	}
	return false
}

func (ctl *controller) lookup(c *gin.Context) (*call.Call, bool) {
	cl, ok := ctl.orch.GetCall(domain.RoomID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": domain.ErrRoomNotFound.Error()})
	}
	return cl, ok
}

// settle waits for a queued operation. Operational failures travel as
// events, so only the wait itself can fail here.
func (ctl *controller) settle(c *gin.Context, f *queue.Future[struct{}]) bool {
	if _, err := f.Wait(c.Request.Context()); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusRequestTimeout
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return false
	}
	return true
}
