package http

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkanev/Pulse/internal/domain"
	"github.com/mkanev/Pulse/internal/hub"
)

// NotifyController is the in-process seam for the excluded persistence
// layer: it hands the hub already-validated facts (message stored,
// group changed) and the hub only decides who to notify. Payloads are
// relayed opaque; the hub never validates or stores them.
type NotifyController struct {
	Hub *hub.Hub
}

type statusRequest struct {
	SenderID   string   `json:"senderId" binding:"required"`
	MessageIDs []string `json:"messageIds" binding:"required"`
	Status     string   `json:"status" binding:"required"`
}

func (n *NotifyController) HandleStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sender, err := domain.ParseUserID(req.SenderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n.Hub.NotifyStatus(sender, req.MessageIDs, req.Status)
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

type messageRequest struct {
	SenderID   string          `json:"senderId" binding:"required"`
	ReceiverID string          `json:"receiverId" binding:"required"`
	Message    json.RawMessage `json:"message" binding:"required"`
}

func (n *NotifyController) HandleMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sender, err := domain.ParseUserID(req.SenderID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	receiver, err := domain.ParseUserID(req.ReceiverID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	n.Hub.RelayMessage(sender, receiver, req.Message)
	c.JSON(http.StatusAccepted, gin.H{"ok": true})
}

type fanOutRequest struct {
	Recipients []string        `json:"recipients" binding:"required"`
	Event      string          `json:"event" binding:"required"`
	Payload    json.RawMessage `json:"payload"`
}

func (n *NotifyController) HandleFanOut(c *gin.Context) {
	var req fanOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	recipients := make([]domain.UserID, 0, len(req.Recipients))
	for _, raw := range req.Recipients {
		uid, err := domain.ParseUserID(raw)
		if err != nil {
			continue
		}
		recipients = append(recipients, uid)
	}
	res := n.Hub.FanOut(recipients, req.Event, req.Payload)
	c.JSON(http.StatusAccepted, gin.H{"sent": res.Sent, "dropped": res.Dropped})
}

type broadcastRequest struct {
	Event   string          `json:"event" binding:"required"`
	Payload json.RawMessage `json:"payload"`
}

func (n *NotifyController) HandleBroadcast(c *gin.Context) {
	var req broadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res := n.Hub.Broadcast(req.Event, req.Payload)
	c.JSON(http.StatusAccepted, gin.H{"sent": res.Sent, "dropped": res.Dropped})
}

func (n *NotifyController) HandleStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"online":      len(n.Hub.Online()),
		"activeCalls": n.Hub.Calls().ActiveCount(),
	})
}
