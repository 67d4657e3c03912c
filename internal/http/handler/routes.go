package handler

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"filedrop/internal/auth"
	"filedrop/internal/config"
	"filedrop/internal/http/middleware"
	"filedrop/internal/service"
)

// Services bundles the injected services routes depend on.
type Services struct {
	Files   service.FileService
	Reports service.ReportService
	Users   service.UserService
}

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal and free of business logic.
func RegisterRoutes(app *fiber.App, db *sql.DB, svcs Services, sessions *auth.SessionManager, cfg *config.AppConfig) {
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

	app.Get("/health", HealthCheck(db))
	app.Get("/healthz", LivenessProbe())

	app.Post("/files", middleware.OptionalSession(sessions), UploadFile(svcs.Files))
	app.Get("/files/:id/download", DownloadFile(svcs.Files))

	app.Post("/reports", ReportAbuse(svcs.Reports))

	app.Post("/auth/register", RegisterUser(svcs.Users))
	app.Post("/auth/login", LoginUser(svcs.Users, cfg))

	admin := app.Group("/admin", middleware.RequireSession(sessions))
	admin.Get("/files", AdminListFiles(svcs.Files))
	admin.Get("/reports", AdminListReports(svcs.Reports))
}

// HealthCheck reports readiness; it checks DB connectivity only.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness check.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// UploadFile accepts a multipart upload (field name: file) with optional
// password and expiryOption form fields.
func UploadFile(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		var userID *string
		if v, ok := c.Locals(middleware.SessionUserLocalKey).(string); ok && v != "" {
			userID = &v
		}

		stored, err := files.Upload(c.UserContext(), service.UploadInput{
			Reader:           f,
			OriginalFilename: fh.Filename,
			Size:             fh.Size,
			Password:         c.FormValue("password"),
			ExpiryOption:     c.FormValue("expiryOption"),
			UserID:           userID,
		})
		if err != nil {
			if errors.Is(err, service.ErrInvalidExpiryOption) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_EXPIRY_OPTION", "invalid expiry option")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(fiber.Map{"success": true, "fileId": stored.ID})
	}
}

// DownloadFile streams a file's content after the service has applied the
// infection, password, expiry, and blob-existence gates. The password
// attempt is passed as a query parameter.
func DownloadFile(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		dl, err := files.Download(c.UserContext(), id, c.Query("password"))
		if err != nil {
			switch {
			case errors.Is(err, service.ErrNotFound):
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			case errors.Is(err, service.ErrBlobMissing):
				return writeError(c, fiber.StatusNotFound, "FILE_MISSING", "file content missing")
			case errors.Is(err, service.ErrPasswordRequired):
				return writeError(c, fiber.StatusUnauthorized, "PASSWORD_REQUIRED", "password required")
			case errors.Is(err, service.ErrPasswordIncorrect):
				return writeError(c, fiber.StatusForbidden, "INCORRECT_PASSWORD", "incorrect password")
			case errors.Is(err, service.ErrInfected):
				return writeError(c, fiber.StatusForbidden, "FILE_INFECTED", "file failed virus scan")
			case errors.Is(err, service.ErrExpiredDate):
				return writeError(c, fiber.StatusGone, "LINK_EXPIRED_DATE", "link expired")
			case errors.Is(err, service.ErrExpiredDownloads):
				return writeError(c, fiber.StatusGone, "LINK_EXPIRED_DOWNLOADS", "download limit reached")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}

		c.Set(fiber.HeaderContentDisposition, contentDisposition(dl.File.OriginalFilename))
		c.Set(fiber.HeaderContentType, dl.ContentType)
		return c.SendStream(dl.Content, int(dl.File.Size))
	}
}

// contentDisposition builds an attachment header from the original filename,
// stripping characters that would break the quoted-string form.
func contentDisposition(filename string) string {
	sanitized := strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r == '\r' || r == '\n' {
			return '_'
		}
		return r
	}, filename)
	return `attachment; filename="` + sanitized + `"`
}

// reportRequest is the JSON body of an abuse report.
type reportRequest struct {
	FileID        string `json:"fileId"`
	Reason        string `json:"reason"`
	ReporterEmail string `json:"reporterEmail"`
	Comments      string `json:"comments"`
}

// ReportAbuse appends an abuse report against a file.
func ReportAbuse(reports service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reportRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		_, err := reports.Create(c.UserContext(), service.ReportInput{
			FileID:        req.FileID,
			Reason:        req.Reason,
			ReporterEmail: req.ReporterEmail,
			Comments:      req.Comments,
		})
		if err != nil {
			switch {
			case errors.Is(err, service.ErrFileIDRequired):
				return writeError(c, fiber.StatusBadRequest, "FILE_ID_REQUIRED", "fileId is required")
			case errors.Is(err, service.ErrReasonRequired):
				return writeError(c, fiber.StatusBadRequest, "REASON_REQUIRED", "reason is required")
			case errors.Is(err, service.ErrCommentsRequired):
				return writeError(c, fiber.StatusBadRequest, "COMMENTS_REQUIRED", "comments are required")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(fiber.Map{"success": true, "message": "report submitted"})
	}
}

// credentialsRequest is the JSON body of register and login requests.
type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterUser creates a new account.
func RegisterUser(users service.UserService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		u, err := users.Register(c.UserContext(), req.Email, req.Password)
		if err != nil {
			switch {
			case errors.Is(err, service.ErrEmailRequired), errors.Is(err, service.ErrInvalidEmail):
				return writeError(c, fiber.StatusBadRequest, "INVALID_EMAIL", "a valid email is required")
			case errors.Is(err, service.ErrPasswordTooShort):
				return writeError(c, fiber.StatusBadRequest, "PASSWORD_TOO_SHORT", "password must be at least 8 characters")
			case errors.Is(err, service.ErrEmailTaken):
				return writeError(c, fiber.StatusConflict, "EMAIL_EXISTS", "email already registered")
			default:
				return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}
		return c.JSON(fiber.Map{"success": true, "message": "registration successful", "userId": u.ID})
	}
}

// LoginUser verifies credentials and sets the session cookie.
func LoginUser(users service.UserService, cfg *config.AppConfig) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req credentialsRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.Email == "" || req.Password == "" {
			return writeError(c, fiber.StatusBadRequest, "MISSING_FIELDS", "email and password are required")
		}

		sess, err := users.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			if errors.Is(err, service.ErrInvalidCredentials) {
				return writeError(c, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		c.Cookie(&fiber.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    sess.Token,
			Expires:  time.Now().Add(auth.SessionTTL),
			HTTPOnly: true,
			Secure:   cfg.IsProduction(),
			SameSite: fiber.CookieSameSiteLaxMode,
			Path:     "/",
		})
		return c.JSON(fiber.Map{"success": true, "user": sess.User})
	}
}

// AdminListFiles lists file records with limit & offset. Password hashes are
// never serialized.
func AdminListFiles(files service.FileService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pagination(c)
		if !ok {
			return nil
		}
		res, err := files.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// AdminListReports lists abuse reports with limit & offset.
func AdminListReports(reports service.ReportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, offset, ok := pagination(c)
		if !ok {
			return nil
		}
		res, err := reports.List(c.UserContext(), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// pagination parses limit/offset query parameters. When it reports !ok the
// 400 response has already been written.
func pagination(c *fiber.Ctx) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.Query("limit", "10"))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		return 0, 0, false
	}
	offset, err = strconv.Atoi(c.Query("offset", "0"))
	if err != nil {
		_ = writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		return 0, 0, false
	}
	return limit, offset, true
}
