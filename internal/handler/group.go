package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"flock-server/internal/qr"
	"flock-server/internal/store"
)

type GroupHandler struct {
	Store *store.Store
}

type createGroupBody struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type joinGroupBody struct {
	UserID      string `json:"userId"`
	GroupID     string `json:"groupId"`
	DisplayName string `json:"displayName"`
}

// Create makes a new group with the caller as sole member and returns
// the group ID together with its QR rendering. The ID is the join
// secret; the QR payload is the bare ID, no URL scheme wrapped around it.
func (h *GroupHandler) Create(c *gin.Context) {
	var body createGroupBody
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "userId required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.UpsertUser(ctx, body.UserID, body.DisplayName); err != nil {
		slog.Error("create group: upsert user", "userId", body.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "message": "Failed to create group"})
		return
	}
	groupID, err := h.Store.CreateGroup(ctx, body.UserID)
	if err != nil {
		slog.Error("create group", "userId", body.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "message": "Failed to create group"})
		return
	}

	code, err := qr.DataURL(groupID)
	if err != nil {
		slog.Error("create group: render code", "groupId", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "qr_failed", "message": "QR generation failed"})
		return
	}

	slog.Info("group created", "groupId", groupID, "creator", body.UserID)
	c.JSON(http.StatusOK, gin.H{"groupId": groupID, "qrCode": code})
}

// Join idempotently adds the caller to an existing group. Re-joining is
// a success, not an error, so clients can retry freely.
func (h *GroupHandler) Join(c *gin.Context) {
	var body joinGroupBody
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" || body.GroupID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "userId and groupId required"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.UpsertUser(ctx, body.UserID, body.DisplayName); err != nil {
		slog.Error("join group: upsert user", "userId", body.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "message": "Failed to join group"})
		return
	}
	if err := h.Store.JoinGroup(ctx, body.GroupID, body.UserID); err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "group_not_found", "message": "Group not found"})
			return
		}
		slog.Error("join group", "groupId", body.GroupID, "userId", body.UserID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "message": "Failed to join group"})
		return
	}

	slog.Info("group joined", "groupId", body.GroupID, "userId", body.UserID)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Members returns the group roster with display names and last known
// positions.
func (h *GroupHandler) Members(c *gin.Context) {
	groupID := c.Param("groupId")
	members, err := h.Store.ListMembers(c.Request.Context(), groupID)
	if err != nil {
		if errors.Is(err, store.ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"code": "group_not_found", "message": "Group not found"})
			return
		}
		slog.Error("list members", "groupId", groupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "store_unavailable", "message": "Failed to list members"})
		return
	}
	c.JSON(http.StatusOK, members)
}
