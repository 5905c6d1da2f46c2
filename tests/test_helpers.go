package tests

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"akta-archive/database"
	"akta-archive/integrity"
	"akta-archive/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	testDB    *gorm.DB
	onceDB    sync.Once
	dbInitErr error
)

// SetupTestDB initializes an in-memory SQLite database for testing
// and migrates the schema.
func SetupTestDB() (*gorm.DB, error) {
	onceDB.Do(func() {
		testDB, dbInitErr = gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if dbInitErr != nil {
			return
		}
		dbInitErr = database.Migrate(testDB)
	})
	return testDB, dbInitErr
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CreateTestApp initializes a new Fiber app for testing purposes.
func CreateTestApp() *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(ctx *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			ctx.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
			return ctx.Status(code).SendString(err.Error())
		},
	})
	return app
}

// ClearRecords deletes all rows from the marriage_records table.
func ClearRecords(db *gorm.DB) error {
	if err := db.Exec("DELETE FROM marriage_records").Error; err != nil {
		return fmt.Errorf("failed to delete marriage records: %w", err)
	}
	return nil
}

// SealedRecord builds a record whose fingerprint matches its fields.
func SealedRecord(husband, wife, nomorAkta, kecamatan string) models.MarriageRecord {
	r := models.MarriageRecord{
		HusbandName:         husband,
		WifeName:            wife,
		MarriageDate:        "2024-05-01",
		NomorNB:             "NB-" + nomorAkta,
		NomorAkta:           nomorAkta,
		Kecamatan:           kecamatan,
		NomorBok:            "B-1",
		LokasiSimpan:        "KUA " + kecamatan,
		ExtractedText:       "Arsip Akta Nikah: " + husband + " & " + wife,
		MediaSimpan:         "Kertas & Digital",
		JumlahLembar:        4,
		Tahun:               "2024",
		JangkaSimpan:        "Permanen",
		TingkatPerkembangan: "Asli",
		UploadedBy:          "admin_" + kecamatan,
	}
	r.Fingerprint = integrity.ComputeFingerprint(r.IntegrityFields())
	return r
}

// TamperRecord rewrites a fingerprinted column directly, the way an
// out-of-band edit to the database would.
func TamperRecord(db *gorm.DB, id, column, value string) error {
	return db.Exec(fmt.Sprintf("UPDATE marriage_records SET %s = ? WHERE id = ?", column), value, id).Error
}

// EnsureTestStorageDirs creates a temporary data directory for tests.
func EnsureTestStorageDirs() (dataDir string, cleanup func(), err error) {
	tempDir, err := os.MkdirTemp("", "akta_archive_test_*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp dir for tests: %w", err)
	}

	dataDir = filepath.Join(tempDir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		os.RemoveAll(tempDir)
		return "", nil, fmt.Errorf("failed to create directory %s: %w", dataDir, err)
	}

	cleanupFunc := func() {
		os.RemoveAll(tempDir)
	}
	return dataDir, cleanupFunc, nil
}
