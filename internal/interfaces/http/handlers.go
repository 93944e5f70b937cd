package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/approval-workflow/internal/application/service"
	"github.com/garyjia/approval-workflow/internal/domain/entity"
	domainwf "github.com/garyjia/approval-workflow/internal/domain/workflow"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps    Dependencies
	version string
	logger  Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, version string, logger Logger) *Handlers {
	return &Handlers{deps: deps, version: version, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// NotificationList is the bell payload
type NotificationList struct {
	Items  []*entity.Notification `json:"items"`
	Unread int                    `json:"unread"`
}

// RoleRequest is the body of a role change
type RoleRequest struct {
	Role domainwf.Role `json:"role"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	respond(c, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   h.version,
	})
}

// SubmitExpense handles POST /api/v1/expenses (multipart form with an optional receipt file)
func (h *Handlers) SubmitExpense(c *gin.Context) {
	var in service.ExpenseInput
	if err := c.ShouldBind(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid expense form: "+err.Error())
		return
	}

	receipt, err := readReceipt(c)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	claim, err := h.deps.Submissions.SubmitExpense(c.Request.Context(), actorFrom(c), in, receipt)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, claim)
}

func readReceipt(c *gin.Context) (*service.Receipt, error) {
	fh, err := c.FormFile("receipt")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, fmt.Errorf("invalid receipt upload: %w", err)
	}
	if fh.Size > service.MaxReceiptBytes {
		return nil, fmt.Errorf("receipt exceeds %d bytes", service.MaxReceiptBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open receipt: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, service.MaxReceiptBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read receipt: %w", err)
	}
	if int64(len(content)) > service.MaxReceiptBytes {
		return nil, fmt.Errorf("receipt exceeds %d bytes", service.MaxReceiptBytes)
	}

	return &service.Receipt{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Content:     content,
	}, nil
}

// SubmitPurchaseOrder handles POST /api/v1/purchase-orders
func (h *Handlers) SubmitPurchaseOrder(c *gin.Context) {
	var in service.PurchaseOrderInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid purchase order: "+err.Error())
		return
	}

	po, err := h.deps.Submissions.SubmitPurchaseOrder(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, po)
}

// ListRequests handles GET /api/v1/{kind}?mine=true
func (h *Handlers) ListRequests(kind entity.RequestKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		mine, _ := strconv.ParseBool(c.Query("mine"))
		view, err := h.deps.Queries.List(c.Request.Context(), actorFrom(c), kind, mine)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, view)
	}
}

// GetRequest handles GET /api/v1/{kind}/:id
func (h *Handlers) GetRequest(kind entity.RequestKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		detail, err := h.deps.Queries.Get(c.Request.Context(), actorFrom(c), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, detail)
	}
}

// RequestHistory handles GET /api/v1/{kind}/:id/history
func (h *Handlers) RequestHistory(kind entity.RequestKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := h.deps.Queries.History(c.Request.Context(), actorFrom(c), kind, c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, entries)
	}
}

// Act handles POST /api/v1/{kind}/:id/approve and /reject
func (h *Handlers) Act(kind entity.RequestKind, trigger domainwf.Trigger) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := h.deps.Engine.Act(c.Request.Context(), actorFrom(c), kind, c.Param("id"), trigger)
		if err != nil {
			writeError(c, err)
			return
		}
		respond(c, http.StatusOK, result)
	}
}

// Dashboard handles GET /api/v1/dashboard
func (h *Handlers) Dashboard(c *gin.Context) {
	d, err := h.deps.Stats.Dashboard(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, d)
}

// HomeStats handles GET /api/v1/stats
func (h *Handlers) HomeStats(c *gin.Context) {
	stats, err := h.deps.Stats.Home(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, stats)
}

// Export handles GET /api/v1/export.xlsx
func (h *Handlers) Export(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.deps.Exports.Export(c.Request.Context(), actorFrom(c), &buf); err != nil {
		writeError(c, err)
		return
	}

	name := fmt.Sprintf("requests-%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// ListNotifications handles GET /api/v1/notifications?limit=
func (h *Handlers) ListNotifications(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	ctx := c.Request.Context()
	actor := actorFrom(c)

	items, err := h.deps.Notifications.Latest(ctx, actor, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	unread, err := h.deps.Notifications.UnreadCount(ctx, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, NotificationList{Items: items, Unread: unread})
}

// MarkAllRead handles POST /api/v1/notifications/read-all
func (h *Handlers) MarkAllRead(c *gin.Context) {
	n, err := h.deps.Notifications.MarkAllRead(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": n})
}

// Subscribe handles POST /api/v1/push/subscriptions
func (h *Handlers) Subscribe(c *gin.Context) {
	var in service.SubscriptionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, "invalid subscription: "+err.Error())
		return
	}

	sub, err := h.deps.Push.Subscribe(c.Request.Context(), actorFrom(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusCreated, sub)
}

// Unsubscribe handles DELETE /api/v1/push/subscriptions?endpoint=
func (h *Handlers) Unsubscribe(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		var in service.SubscriptionInput
		if err := c.ShouldBindJSON(&in); err == nil {
			endpoint = in.Endpoint
		}
	}
	if endpoint == "" {
		fail(c, http.StatusBadRequest, "endpoint is required")
		return
	}

	if err := h.deps.Push.Unsubscribe(c.Request.Context(), actorFrom(c), endpoint); err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, nil)
}

// ListUsers handles GET /api/v1/admin/users
func (h *Handlers) ListUsers(c *gin.Context) {
	profiles, err := h.deps.Admin.ListProfiles(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, profiles)
}

// SetRole handles PUT /api/v1/admin/users/:id/role
func (h *Handlers) SetRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid role request: "+err.Error())
		return
	}

	profile, err := h.deps.Admin.SetRole(c.Request.Context(), actorFrom(c), c.Param("id"), req.Role)
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, profile)
}

// RoleCounts handles GET /api/v1/admin/role-counts
func (h *Handlers) RoleCounts(c *gin.Context) {
	counts, err := h.deps.Admin.RoleCounts(c.Request.Context(), actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	respond(c, http.StatusOK, counts)
}

// Socket handles GET /api/v1/ws
func (h *Handlers) Socket(c *gin.Context) {
	if h.deps.Sockets == nil {
		fail(c, http.StatusNotFound, "realtime delivery disabled")
		return
	}
	actor := actorFrom(c)
	if err := h.deps.Sockets.Serve(c.Writer, c.Request, actor.ID); err != nil {
		// the upgrader has already written the failure response
		h.logger.Error("Socket upgrade failed", "user_id", actor.ID, "error", err)
	}
}
