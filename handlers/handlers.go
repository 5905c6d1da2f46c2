package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"akta-archive/database"
	"akta-archive/extraction"
	"akta-archive/models"
	"akta-archive/storage"
	"akta-archive/verifylink"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Extractor reads certificate fields out of scanned documents.
type Extractor interface {
	Configured() bool
	Extract(ctx context.Context, docs []extraction.Document) (*extraction.Result, error)
}

// Handler serves the archive API.
type Handler struct {
	store        *storage.Store
	extractor    Extractor
	links        *verifylink.Builder
	log          *slog.Logger
	maxDocuments int
}

// New returns a Handler. maxDocuments caps the files accepted per request.
func New(store *storage.Store, extractor Extractor, links *verifylink.Builder, log *slog.Logger, maxDocuments int) *Handler {
	return &Handler{
		store:        store,
		extractor:    extractor,
		links:        links,
		log:          log,
		maxDocuments: maxDocuments,
	}
}

// recordResponse is a record as the staff UI sees it.
type recordResponse struct {
	models.MarriageRecord
	Verified  bool   `json:"verified"`
	VerifyURL string `json:"verifyUrl"`
}

func (h *Handler) respond(rec *models.MarriageRecord, verified bool) recordResponse {
	return recordResponse{
		MarriageRecord: *rec,
		Verified:       verified,
		VerifyURL:      h.links.URL(rec.Fingerprint),
	}
}

// readUploads collects the "documents" parts of a multipart request.
func readUploads(c *fiber.Ctx) ([]storage.Upload, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}

	var uploads []storage.Upload
	for _, fh := range form.File["documents"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		uploads = append(uploads, storage.Upload{
			Name:      fh.Filename,
			MediaType: fh.Header.Get(fiber.HeaderContentType),
			Data:      data,
		})
	}
	return uploads, nil
}

// Extract handles AI field extraction for one to maxDocuments scanned pages.
func (h *Handler) Extract(c *fiber.Ctx) error {
	if !h.extractor.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "AI extraction is not configured",
		})
	}

	uploads, err := readUploads(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Cannot read documents: %s", err.Error()),
		})
	}
	if len(uploads) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "At least one document is required",
		})
	}
	if len(uploads) > h.maxDocuments {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("At most %d documents are allowed", h.maxDocuments),
		})
	}

	docs := make([]extraction.Document, len(uploads))
	for i, u := range uploads {
		u = h.store.Normalize("extract", u)
		docs[i] = extraction.Document{MediaType: u.MediaType, Data: u.Data}
	}

	res, err := h.extractor.Extract(c.UserContext(), docs)
	if err != nil {
		h.log.Error("extraction failed", slog.Int("documents", len(docs)), slog.Any("error", err))
		status := fiber.StatusBadGateway
		if errors.Is(err, extraction.ErrNotConfigured) {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to extract fields: %s", err.Error()),
		})
	}
	return c.JSON(res)
}

// CreateRecordPayload is the expected payload for the CreateRecord handler.
// It arrives as multipart form fields next to the "documents" files, or as JSON.
type CreateRecordPayload struct {
	HusbandName   string `json:"husbandName" form:"husbandName"`
	WifeName      string `json:"wifeName" form:"wifeName"`
	MarriageDate  string `json:"marriageDate" form:"marriageDate"`
	NomorNB       string `json:"nomorNB" form:"nomorNB"`
	NomorAkta     string `json:"nomorAkta" form:"nomorAkta"`
	NomorBok      string `json:"nomorBok" form:"nomorBok"`
	LokasiSimpan  string `json:"lokasiSimpan" form:"lokasiSimpan"`
	ExtractedText string `json:"extractedText" form:"extractedText"`
	MediaSimpan   string `json:"mediaSimpan" form:"mediaSimpan"`
	JumlahLembar  int    `json:"jumlahLembar" form:"jumlahLembar"`
}

// CreateRecord archives a new marriage record for the session's district.
func (h *Handler) CreateRecord(c *fiber.Ctx) error {
	s := sessionFrom(c)
	if s.Role != models.RoleAdminKecamatan {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Only kecamatan admins can archive records",
		})
	}

	payload := new(CreateRecordPayload)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Cannot parse record payload",
		})
	}
	uploads, err := readUploads(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": fmt.Sprintf("Cannot read documents: %s", err.Error()),
		})
	}

	rec, err := h.store.ArchiveRecord(c.UserContext(), storage.ArchiveInput{
		HusbandName:   payload.HusbandName,
		WifeName:      payload.WifeName,
		MarriageDate:  payload.MarriageDate,
		NomorNB:       payload.NomorNB,
		NomorAkta:     payload.NomorAkta,
		NomorBok:      payload.NomorBok,
		LokasiSimpan:  payload.LokasiSimpan,
		ExtractedText: payload.ExtractedText,
		MediaSimpan:   payload.MediaSimpan,
		JumlahLembar:  payload.JumlahLembar,
		Kecamatan:     s.Kecamatan,
		UploadedBy:    s.Username,
		Documents:     uploads,
	})
	if errors.Is(err, storage.ErrInvalidInput) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to archive record: %s", err.Error()),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(h.respond(rec, rec.Verify()))
}

// ListRecords handles searching the archive.
func (h *Handler) ListRecords(c *fiber.Ctx) error {
	s := sessionFrom(c)
	records, err := h.store.ListRecords(c.UserContext(), storage.ListFilter{
		Kecamatan: s.ScopeKecamatan(c.Query("kecamatan")),
		Query:     c.Query("q"),
		Limit:     c.QueryInt("limit", 0),
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to list records: %s", err.Error()),
		})
	}

	verified := storage.VerifyRecords(c.UserContext(), records)
	out := make([]recordResponse, len(records))
	for i := range records {
		out[i] = h.respond(&records[i], verified[records[i].ID])
	}
	return c.JSON(out)
}

// AuditRecords re-verifies every record visible to the session.
func (h *Handler) AuditRecords(c *fiber.Ctx) error {
	s := sessionFrom(c)
	entries, err := h.store.Audit(c.UserContext(), s.ScopeKecamatan(c.Query("kecamatan")))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to audit records: %s", err.Error()),
		})
	}

	failed := 0
	for _, e := range entries {
		if !e.Verified {
			failed++
		}
	}
	return c.JSON(fiber.Map{
		"total":   len(entries),
		"failed":  failed,
		"entries": entries,
	})
}

// loadRecord fetches the :id record and hides it from sessions of other
// districts. A nil record means the error response has already been written.
func (h *Handler) loadRecord(c *fiber.Ctx) (*models.MarriageRecord, error) {
	id := c.Params("id")
	rec, err := h.store.GetRecord(c.UserContext(), id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Record with ID %s not found", id),
		})
	}
	if err != nil {
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to load record %s: %s", id, err.Error()),
		})
	}
	if !sessionFrom(c).CanSee(rec.Kecamatan) {
		return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Record with ID %s not found", id),
		})
	}
	return rec, nil
}

// GetRecord handles the request for one record.
func (h *Handler) GetRecord(c *fiber.Ctx) error {
	rec, err := h.loadRecord(c)
	if rec == nil {
		return err
	}
	return c.JSON(h.respond(rec, rec.Verify()))
}

// GetDocument sends one stored document of a record.
func (h *Handler) GetDocument(c *fiber.Ctx) error {
	rec, err := h.loadRecord(c)
	if rec == nil {
		return err
	}

	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Document index must be a number",
		})
	}
	path, doc, err := h.store.DocumentPath(rec, index)
	if errors.Is(err, storage.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": fmt.Sprintf("Document %d of record %s not found", index, rec.ID),
		})
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to open document: %s", err.Error()),
		})
	}

	if err := c.SendFile(path); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, doc.MediaType)
	return nil
}

// GetQRCode renders the record's verification link as a PNG.
func (h *Handler) GetQRCode(c *fiber.Ctx) error {
	rec, err := h.loadRecord(c)
	if rec == nil {
		return err
	}

	size := c.QueryInt("size", verifylink.DefaultQRSize)
	if size < 64 || size > 1024 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "QR size must be between 64 and 1024",
		})
	}
	png, err := h.links.QRCode(rec.Fingerprint, size)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to render QR code: %s", err.Error()),
		})
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// GetStats returns dashboard counters for the session's scope.
func (h *Handler) GetStats(c *fiber.Ctx) error {
	s := sessionFrom(c)
	st, err := h.store.Stats(c.UserContext(), s.ScopeKecamatan(c.Query("kecamatan")))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": fmt.Sprintf("Failed to compute stats: %s", err.Error()),
		})
	}
	return c.JSON(st)
}

// GetStatus reports whether the database and AI extraction are usable.
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	dbStatus := "ok"
	if err := database.Ping(h.store.DB()); err != nil {
		dbStatus = err.Error()
	}
	return c.JSON(fiber.Map{
		"database":     dbStatus,
		"aiConfigured": h.extractor.Configured(),
		"time":         time.Now().UTC(),
	})
}

// publicRecord is what anyone scanning a QR code may see.
type publicRecord struct {
	HusbandName  string    `json:"husbandName"`
	WifeName     string    `json:"wifeName"`
	MarriageDate string    `json:"marriageDate"`
	NomorAkta    string    `json:"nomorAkta"`
	Kecamatan    string    `json:"kecamatan"`
	LokasiSimpan string    `json:"lokasiSimpan"`
	Fingerprint  string    `json:"fingerprint"`
	ArchivedAt   time.Time `json:"archivedAt"`
}

// Verify is the public landing point of a verification link.
func (h *Handler) Verify(c *fiber.Ctx) error {
	fp := c.Query("verify")
	if fp == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Missing verify parameter",
		})
	}

	v, err := h.store.VerifyByFingerprint(c.UserContext(), fp)
	if err != nil {
		h.log.Error("verification lookup failed", slog.Any("error", err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Verification is temporarily unavailable",
		})
	}

	switch v.Status {
	case storage.StatusSuccess:
		r := v.Record
		return c.JSON(fiber.Map{
			"status": v.Status,
			"record": publicRecord{
				HusbandName:  r.HusbandName,
				WifeName:     r.WifeName,
				MarriageDate: r.MarriageDate,
				NomorAkta:    r.NomorAkta,
				Kecamatan:    r.Kecamatan,
				LokasiSimpan: r.LokasiSimpan,
				Fingerprint:  r.Fingerprint,
				ArchivedAt:   r.CreatedAt,
			},
		})
	case storage.StatusTampered:
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"status": v.Status})
	default:
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"status": v.Status})
	}
}

// Root is the welcome route. Printed QR codes point at the root with
// ?verify=, so those requests are sent on to Verify.
func Root(c *fiber.Ctx) error {
	if fp := c.Query("verify"); fp != "" {
		return c.Redirect("/verify?verify=" + url.QueryEscape(fp))
	}
	return c.SendString("Akta archive API is running. Use /api/records endpoints.")
}

// SetupRoutes configures the API routes for the application
func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/", Root)
	app.Get("/verify", h.Verify)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api") // Base path for API routes
	api.Post("/session", CreateSession)
	api.Get("/status", RequireSession, h.GetStatus)
	api.Get("/stats", RequireSession, h.GetStats)
	api.Post("/extract", RequireSession, h.Extract)

	records := api.Group("/records", RequireSession)
	records.Post("/", h.CreateRecord)
	records.Get("/", h.ListRecords)
	records.Get("/audit", h.AuditRecords)
	records.Get("/:id", h.GetRecord)
	records.Get("/:id/documents/:index", h.GetDocument)
	records.Get("/:id/qr", h.GetQRCode)
}
