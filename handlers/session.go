package handlers

import (
	"strings"

	"akta-archive/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Session headers. The session is an unsigned flag held by the client; it
// scopes what the UI shows and is not an authentication mechanism.
const (
	HeaderUser      = "X-Archive-User"
	HeaderRole      = "X-Archive-Role"
	HeaderKecamatan = "X-Archive-Kecamatan"
)

const sessionKey = "session"

// Session identifies the staff member using the archive.
type Session struct {
	ID        string      `json:"id"`
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	Kecamatan string      `json:"kecamatan,omitempty"`
}

// SessionPayload is the expected payload for the CreateSession handler
type SessionPayload struct {
	Username  string      `json:"username"`
	Role      models.Role `json:"role"`
	Kecamatan string      `json:"kecamatan"`
}

func (p SessionPayload) session() (Session, string) {
	s := Session{
		Username: strings.TrimSpace(p.Username),
		Role:     p.Role,
	}
	if s.Username == "" {
		return s, "Username cannot be empty"
	}
	if !s.Role.Valid() {
		return s, "Unknown role"
	}
	if s.Role == models.RoleAdminKecamatan {
		if !models.IsKecamatan(p.Kecamatan) {
			return s, "Unknown kecamatan"
		}
		s.Kecamatan = p.Kecamatan
	}
	return s, ""
}

// ScopeKecamatan returns the district the session is limited to, or
// requested when the session may see every district.
func (s Session) ScopeKecamatan(requested string) string {
	if s.Role == models.RoleAdminKecamatan {
		return s.Kecamatan
	}
	if requested == "" {
		return models.AllKecamatan
	}
	return requested
}

// CanSee reports whether a record from kecamatan is visible to the session.
func (s Session) CanSee(kecamatan string) bool {
	return s.Role == models.RoleAdminKabupaten || s.Kecamatan == kecamatan
}

// CreateSession handles login: it validates the chosen role and district
// and returns the session the client must echo back in headers.
func CreateSession(c *fiber.Ctx) error {
	payload := new(SessionPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse JSON payload",
		})
	}

	s, problem := payload.session()
	if problem != "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": problem,
		})
	}
	s.ID = uuid.New().String()
	return c.Status(fiber.StatusCreated).JSON(s)
}

// RequireSession rejects requests that carry no usable session headers.
func RequireSession(c *fiber.Ctx) error {
	payload := SessionPayload{
		Username:  c.Get(HeaderUser),
		Role:      models.Role(c.Get(HeaderRole)),
		Kecamatan: c.Get(HeaderKecamatan),
	}
	s, problem := payload.session()
	if problem != "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Session required: " + problem,
		})
	}
	c.Locals(sessionKey, s)
	return c.Next()
}

func sessionFrom(c *fiber.Ctx) Session {
	s, _ := c.Locals(sessionKey).(Session)
	return s
}
