package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"attachstore/internal/model"
	"attachstore/internal/service"
	"attachstore/internal/storage"
)

// AttachFunc builds an orchestrator for one ad-hoc attachment point. The
// demo attach endpoint uses it so attribute configuration stays in the
// composition root, not here.
type AttachFunc func(attribute string, access model.Access, supersede bool) (*service.Orchestrator, error)

// Deps bundles what the HTTP layer needs.
type Deps struct {
	DB       *sql.DB
	Records  service.RecordService
	Tokens   service.TokenService
	Resolver *service.URLResolver
	Store    storage.ObjectStore
	Attach   AttachFunc
}

// identityFrom builds the request-scoped caller identity. User and tenant
// come from upstream auth headers; the source address from the connection.
func identityFrom(c *fiber.Ctx) model.Identity {
	return model.Identity{
		UserID: c.Get("X-User-ID"),
		IP:     c.IP(),
		Tenant: c.Get("X-Tenant-ID"),
	}
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, d Deps) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health endpoint: checks DB connectivity only
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	})

	// Simple liveness probe
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// List records visible to the caller's tenant, limit & offset paging.
	// ?status=deleted opts into soft-deleted rows.
	app.Get("/records", func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}
		var status *model.Status
		switch c.Query("status") {
		case "":
		case "active":
			st := model.StatusActive
			status = &st
		case "deleted":
			st := model.StatusDeleted
			status = &st
		default:
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status")
		}

		res, err := d.Records.List(c.UserContext(), limit, offset, identityFrom(c), status)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	})

	// Get record by ID; src is the resolved access URL for the caller.
	app.Get("/records/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		viewer := identityFrom(c)
		rec, err := d.Records.Get(c.UserContext(), id, viewer)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "record not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		src, err := d.Resolver.Resolve(c.UserContext(), rec, viewer)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"id": rec.ID, "src": src})
	})

	// Soft-delete record by ID (bytes removed, row retained for audit)
	app.Delete("/records/:id", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := d.Records.Delete(c.UserContext(), id, identityFrom(c)); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "record not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Restore a soft-deleted record
	app.Post("/records/:id/restore", func(c *fiber.Ctx) error {
		id := c.Params("id")
		if _, err := uuid.Parse(id); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := d.Records.Restore(c.UserContext(), id, identityFrom(c)); err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "record not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	// Storage usage, total and per owner class
	app.Get("/usage", func(c *fiber.Ctx) error {
		res, err := d.Records.Usage(c.UserContext())
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	})

	// Attach files to an owner entity (multipart/form-data).
	// Fields: attribute (required), access (public|private), file (repeatable)
	// or source_url (repeatable). The owner must already exist — its id is in
	// the path — so staging and materialization run back to back here.
	app.Post("/owners/:class/:id/files", func(c *fiber.Ctx) error {
		ownerClass := c.Params("class")
		ownerID := c.Params("id")
		attribute := c.FormValue("attribute")
		if attribute == "" {
			return writeError(c, fiber.StatusBadRequest, "ATTRIBUTE_REQUIRED", "attribute is required")
		}
		access := model.AccessPublicRead
		if c.FormValue("access") == "private" {
			access = model.AccessPrivate
		}

		var raw any
		form, err := c.MultipartForm()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_FORM", "multipart form required")
		}
		var inputs []any
		for _, fh := range form.File["file"] {
			f, err := fh.Open()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
			}
			content, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "FILE_READ_ERROR", "cannot read uploaded file")
			}
			ct := fh.Header.Get("Content-Type")
			if ct == "" {
				ct = "application/octet-stream"
			}
			inputs = append(inputs, &service.File{
				Name:     fh.Filename,
				Content:  content,
				Size:     int64(len(content)),
				MimeType: ct,
			})
		}
		for _, u := range form.Value["source_url"] {
			inputs = append(inputs, u)
		}
		switch len(inputs) {
		case 0:
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file or source_url is required")
		case 1:
			raw = inputs[0]
		default:
			raw = inputs
		}

		orch, err := d.Attach(attribute, access, len(inputs) == 1)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ATTACH_CONFIG", "invalid attach configuration")
		}

		value := raw
		owner := &service.Owner{
			Ref: model.OwnerRef{Class: ownerClass, ID: ownerID},
			Bindings: map[string]service.Binding{
				attribute: {
					Get: func() any { return value },
					Set: func(v any) { value = v },
				},
			},
		}

		ctx := c.UserContext()
		if err := orch.Stage(ctx, owner); err != nil {
			return writeError(c, fiber.StatusUnprocessableEntity, "STAGING_FAILED", "staging failed")
		}
		records, err := orch.Materialize(ctx, owner, identityFrom(c))
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "ATTACH_FAILED", "attach failed")
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": records})
	})

	// Download endpoint for private records: validates the token against the
	// requesting identity and source address, then streams the object. Every
	// failure is a uniform not-found; the reason is never differentiated.
	app.Get("/storage/file", func(c *fiber.Ctx) error {
		token := c.Query("token")
		inline := c.QueryBool("inline", false)

		rec, err := d.Tokens.Validate(c.UserContext(), token, identityFrom(c))
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
		}

		obj, _, err := d.Store.Get(c.UserContext(), rec.Key())
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "resource not found")
		}

		disposition := "attachment"
		if inline {
			disposition = "inline"
		}
		c.Set(fiber.HeaderContentType, rec.MimeType)
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`%s; filename="%s"`, disposition, rec.FileName))
		return c.SendStream(obj)
	})
}
