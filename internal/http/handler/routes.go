package handler

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"docshare/internal/model"
	"docshare/internal/service"
	"docshare/internal/storage"
)

const (
	// PasswordHeader carries the share access password on signing-party routes.
	PasswordHeader = "X-Share-Password"

	archiveURLExpiry = 15 * time.Minute
	defaultAuditSize = 50
)

// Pinger is satisfied by every key-value store backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ArchiveLinker hands out download links for archived completed documents.
type ArchiveLinker interface {
	URL(ctx context.Context, shareID string, expiry time.Duration) (string, error)
}

// NotificationFeed lists recent completion events, newest first.
type NotificationFeed interface {
	Recent() []model.CompletionEvent
}

// AuditReader lists recent audit entries, newest first.
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]model.AuditEntry, error)
}

// Deps groups what RegisterRoutes wires into the handlers.
// Archive, Notifications, Audit and Gatherer may be nil.
type Deps struct {
	Store         Pinger
	Sharing       service.SharingService
	BaseURL       string
	Archive       ArchiveLinker
	Notifications NotificationFeed
	Audit         AuditReader
	Gatherer      prometheus.Gatherer
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/health", HealthCheck(d.Store))
	app.Get("/healthz", LivenessProbe())

	if d.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Post("/shares", CreateShare(d.Sharing, d.BaseURL))
	app.Get("/shares", ListShares(d.Sharing))
	app.Get("/shares/:id", OpenShare(d.Sharing))
	app.Delete("/shares/:id", DeleteShare(d.Sharing))
	app.Get("/shares/:id/status", GetStatus(d.Sharing))
	app.Post("/shares/:id/signatures/:role", SubmitSignature(d.Sharing))
	app.Get("/shares/:id/completed", GetCompleted(d.Sharing))
	app.Get("/shares/:id/archive", GetArchive(d.Archive))

	app.Get("/notifications", Notifications(d.Notifications))
	app.Get("/audit", Audit(d.Audit))
}

// HealthCheck reports whether the share store is reachable.
//
// @Summary Store health
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} errorPayload
// @Router /health [get]
func HealthCheck(store Pinger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe answers 200 as long as the process serves requests.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// CreateShare freezes the posted snapshot into a new share.
// An empty body is forwarded as is so the caller gets NO_ACTIVE_DOCUMENT.
//
// @Summary Share a document for signature
// @Tags shares
// @Accept json
// @Produce json
// @Param body body service.CreateShareInput true "document snapshot"
// @Success 201 {object} model.ShareResult
// @Failure 400 {object} errorPayload
// @Failure 422 {object} errorPayload
// @Router /shares [post]
func CreateShare(svc service.SharingService, baseURL string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var in service.CreateShareInput
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&in); err != nil {
				return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
			}
		}

		res, err := svc.CreateShare(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		res.AccessURL = baseURL + "/parent-signature?id=" + res.ShareID
		res.QRCodeData = res.AccessURL
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// ListShares returns share summaries, optionally filtered by ?status.
//
// @Summary List shares
// @Tags shares
// @Produce json
// @Param status query string false "pending or completed"
// @Success 200 {object} map[string]any
// @Router /shares [get]
func ListShares(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var filter service.ListFilter
		switch status := model.ShareStatus(c.Query("status")); status {
		case "":
		case model.StatusPending, model.StatusCompleted:
			filter.Status = status
		default:
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "status must be pending or completed")
		}

		items, err := svc.ListShares(c.UserContext(), filter)
		if err != nil {
			return writeServiceError(c, err)
		}
		if items == nil {
			items = []model.ShareSummary{}
		}
		return c.JSON(fiber.Map{"items": items, "total": len(items)})
	}
}

// shareView is what a signing party sees; the password and signature images stay server side.
type shareView struct {
	ShareID      string              `json:"shareId"`
	DocumentType model.DocumentType  `json:"documentType"`
	Snapshot     json.RawMessage     `json:"documentSnapshot"`
	CreatedAt    time.Time           `json:"createdAt"`
	Roles        []model.Role        `json:"roles"`
	Signed       map[model.Role]bool `json:"signed"`
	Status       model.ShareStatus   `json:"status"`
}

func newShareView(rec *model.ShareRecord) shareView {
	signed := make(map[model.Role]bool, len(rec.Roles))
	for _, r := range rec.Roles {
		signed[r] = rec.Signed(r)
	}
	return shareView{
		ShareID:      rec.ShareID,
		DocumentType: rec.DocumentType,
		Snapshot:     rec.Snapshot,
		CreatedAt:    rec.CreatedAt,
		Roles:        rec.Roles,
		Signed:       signed,
		Status:       rec.Status,
	}
}

// OpenShare returns the frozen document to a signing party holding the password.
//
// @Summary Open a share for signing
// @Tags signing
// @Produce json
// @Param id path string true "share id"
// @Param X-Share-Password header string true "access password"
// @Success 200 {object} shareView
// @Failure 403 {object} errorPayload
// @Failure 404 {object} errorPayload
// @Router /shares/{id} [get]
func OpenShare(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := svc.OpenShare(c.UserContext(), c.Params("id"), c.Get(PasswordHeader))
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(newShareView(rec))
	}
}

// GetStatus reports which roles have signed.
//
// @Summary Signature status
// @Tags shares
// @Produce json
// @Param id path string true "share id"
// @Success 200 {object} model.SignatureStatus
// @Failure 404 {object} errorPayload
// @Router /shares/{id}/status [get]
func GetStatus(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := svc.GetStatus(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if st == nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "share not found")
		}
		return c.JSON(st)
	}
}

// SubmitSignature applies one role's signature after checking the access password.
//
// @Summary Submit a signature
// @Tags signing
// @Accept json
// @Param id path string true "share id"
// @Param role path string true "mother or father"
// @Param X-Share-Password header string true "access password"
// @Param body body service.SignatureInput true "signature image"
// @Success 204
// @Failure 409 {object} errorPayload
// @Router /shares/{id}/signatures/{role} [post]
func SubmitSignature(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := svc.OpenShare(c.UserContext(), id, c.Get(PasswordHeader)); err != nil {
			return writeServiceError(c, err)
		}

		var in service.SignatureInput
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&in); err != nil {
				return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
			}
		}

		if err := svc.SubmitSignature(c.UserContext(), id, model.Role(c.Params("role")), in); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetCompleted returns the signed document once every role has signed.
//
// @Summary Completed document
// @Tags shares
// @Produce json
// @Param id path string true "share id"
// @Success 200 {object} model.CompletedDocument
// @Failure 404 {object} errorPayload
// @Router /shares/{id}/completed [get]
func GetCompleted(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := svc.GetCompletedDocument(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeServiceError(c, err)
		}
		if doc == nil {
			return writeError(c, fiber.StatusNotFound, "NOT_COMPLETED", "document is not fully signed")
		}
		return c.JSON(doc)
	}
}

// GetArchive returns a short-lived download link for the archived document.
func GetArchive(linker ArchiveLinker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if linker == nil {
			return writeError(c, fiber.StatusServiceUnavailable, "ARCHIVE_DISABLED", "object storage is not configured")
		}
		url, err := linker.URL(c.UserContext(), c.Params("id"), archiveURLExpiry)
		if err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "no archived document for this share")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"url": url, "expiresIn": int(archiveURLExpiry.Seconds())})
	}
}

// DeleteShare removes a share and its notification mark.
//
// @Summary Delete a share
// @Tags shares
// @Param id path string true "share id"
// @Success 204
// @Failure 404 {object} errorPayload
// @Router /shares/{id} [delete]
func DeleteShare(svc service.SharingService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.DeleteShare(c.UserContext(), c.Params("id")); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// Notifications lists recent completion events for the owner.
func Notifications(feed NotificationFeed) fiber.Handler {
	return func(c *fiber.Ctx) error {
		items := []model.CompletionEvent{}
		if feed != nil {
			items = append(items, feed.Recent()...)
		}
		return c.JSON(fiber.Map{"items": items})
	}
}

// Audit lists the most recent audit entries, ?limit defaulting to 50.
func Audit(trail AuditReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", strconv.Itoa(defaultAuditSize)))
		if err != nil || limit < 0 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}

		items := []model.AuditEntry{}
		if trail != nil {
			entries, err := trail.Recent(c.UserContext(), limit)
			if err != nil {
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
			items = append(items, entries...)
		}
		return c.JSON(fiber.Map{"items": items})
	}
}
