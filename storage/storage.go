package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"akta-archive/integrity"
	"akta-archive/metrics"
	"akta-archive/models"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a record or document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is returned when an archive request is incomplete.
	ErrInvalidInput = errors.New("invalid input")
)

// Upload defaults applied when the form leaves a field empty.
const (
	DefaultMediaSimpan         = "Kertas & Digital"
	DefaultJumlahLembar        = 4
	DefaultJangkaSimpan        = "Permanen"
	DefaultTingkatPerkembangan = "Asli"
)

// DefaultMaxImagePixels caps the decoded size of uploaded images.
const DefaultMaxImagePixels = 40_000_000

// Options configures where and how documents are kept.
type Options struct {
	DataDir       string
	MaxDocuments  int
	MaxImageWidth int
	JPEGQuality   int

	// MaxImagePixels is the largest width*height recompressed; zero means
	// DefaultMaxImagePixels.
	MaxImagePixels int
}

// Store persists marriage records and their documents.
type Store struct {
	db   *gorm.DB
	opts Options
	log  *slog.Logger
	now  func() time.Time
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB, opts Options, log *slog.Logger) *Store {
	return &Store{db: db, opts: opts, log: log, now: time.Now}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) maxImagePixels() int {
	if s.opts.MaxImagePixels > 0 {
		return s.opts.MaxImagePixels
	}
	return DefaultMaxImagePixels
}

func (s *Store) documentsDir() string {
	return filepath.Join(s.opts.DataDir, "documents")
}

// EnsureDirs creates the document directory if it doesn't exist.
func (s *Store) EnsureDirs() error {
	dir := s.documentsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory '%s': %w", dir, err)
	}
	return nil
}

// ArchiveInput is what an uploader submits for a new record.
type ArchiveInput struct {
	HusbandName   string
	WifeName      string
	MarriageDate  string
	NomorNB       string
	NomorAkta     string
	NomorBok      string
	LokasiSimpan  string
	ExtractedText string
	MediaSimpan   string
	JumlahLembar  int

	Kecamatan  string
	UploadedBy string
	Documents  []Upload
}

// Validate checks the minimum data needed for an archive entry.
func (in ArchiveInput) Validate(maxDocuments int) error {
	if strings.TrimSpace(in.HusbandName) == "" ||
		strings.TrimSpace(in.WifeName) == "" ||
		strings.TrimSpace(in.NomorAkta) == "" {
		return fmt.Errorf("%w: husband name, wife name and nomor akta are required", ErrInvalidInput)
	}
	if len(in.Documents) > maxDocuments {
		return fmt.Errorf("%w: at most %d documents per record, got %d", ErrInvalidInput, maxDocuments, len(in.Documents))
	}
	if in.JumlahLembar < 0 {
		return fmt.Errorf("%w: jumlah lembar must not be negative", ErrInvalidInput)
	}
	return nil
}

// newRecord applies upload defaults and seals the result.
func (s *Store) newRecord(in ArchiveInput) models.MarriageRecord {
	now := s.now()

	kecamatan := in.Kecamatan
	if kecamatan == "" {
		kecamatan = models.DefaultKecamatan
	}
	lokasi := in.LokasiSimpan
	if lokasi == "" {
		lokasi = "KUA " + kecamatan
	}
	media := in.MediaSimpan
	if media == "" {
		media = DefaultMediaSimpan
	}
	lembar := in.JumlahLembar
	if lembar == 0 {
		lembar = DefaultJumlahLembar
	}
	text := in.ExtractedText
	if text == "" {
		text = fmt.Sprintf("Arsip Akta Nikah: %s & %s", in.HusbandName, in.WifeName)
	}
	tahun := in.MarriageDate
	if tahun == "" {
		tahun = now.Format("2006")
	} else if r := []rune(tahun); len(r) > 4 {
		tahun = string(r[:4])
	}

	rec := models.MarriageRecord{
		ID:                  uuid.New().String(),
		HusbandName:         in.HusbandName,
		WifeName:            in.WifeName,
		MarriageDate:        in.MarriageDate,
		NomorNB:             in.NomorNB,
		NomorAkta:           in.NomorAkta,
		Kecamatan:           kecamatan,
		NomorBok:            in.NomorBok,
		LokasiSimpan:        lokasi,
		ExtractedText:       text,
		Documents:           datatypes.JSONSlice[models.Document]{},
		MediaSimpan:         media,
		JumlahLembar:        lembar,
		Tahun:               tahun,
		JangkaSimpan:        DefaultJangkaSimpan,
		TingkatPerkembangan: DefaultTingkatPerkembangan,
		UploadedBy:          in.UploadedBy,
		CreatedAt:           now,
	}
	rec.Fingerprint = integrity.ComputeFingerprint(rec.IntegrityFields())
	return rec
}

// ArchiveRecord orchestrates archiving a new marriage record: it fingerprints
// the fields, stores the documents and inserts the row.
func (s *Store) ArchiveRecord(ctx context.Context, in ArchiveInput) (*models.MarriageRecord, error) {
	if err := in.Validate(s.opts.MaxDocuments); err != nil {
		return nil, err
	}
	if err := s.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to ensure storage directories: %w", err)
	}

	rec := s.newRecord(in)

	docs, err := s.SaveDocuments(rec.ID, in.Documents)
	if err != nil {
		return nil, fmt.Errorf("failed to store documents for record %s: %w", rec.ID, err)
	}
	rec.Documents = docs

	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		s.removeDocuments(rec.ID)
		return nil, fmt.Errorf("failed to create marriage record %s in database: %w", rec.ID, err)
	}

	metrics.RecordsArchived.WithLabelValues(rec.Kecamatan).Inc()
	s.log.Info("record archived",
		slog.String("id", rec.ID),
		slog.String("kecamatan", rec.Kecamatan),
		slog.String("fingerprint", rec.Fingerprint),
		slog.Int("documents", len(rec.Documents)),
	)
	return &rec, nil
}

// GetRecord loads a record by its ID.
func (s *Store) GetRecord(ctx context.Context, id string) (*models.MarriageRecord, error) {
	var rec models.MarriageRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record %s: %w", id, err)
	}
	return &rec, nil
}

// GetRecordByFingerprint loads the oldest record carrying fingerprint fp.
func (s *Store) GetRecordByFingerprint(ctx context.Context, fp string) (*models.MarriageRecord, error) {
	var rec models.MarriageRecord
	err := s.db.WithContext(ctx).
		Where("fingerprint = ?", fp).
		Order("created_at asc").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("fingerprint %s: %w", fp, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record by fingerprint: %w", err)
	}
	return &rec, nil
}

// ListFilter narrows ListRecords.
type ListFilter struct {
	// Kecamatan limits results to one district; empty or models.AllKecamatan
	// returns every district.
	Kecamatan string
	// Query matches husband name, wife name, nomor akta or nomor NB,
	// case-insensitively under full Unicode case mapping.
	Query string
	Limit int
}

func scopeKecamatan(q *gorm.DB, kecamatan string) *gorm.DB {
	if kecamatan == "" || kecamatan == models.AllKecamatan {
		return q
	}
	return q.Where("kecamatan = ?", kecamatan)
}

// searchRow holds the columns ListRecords matches a query against.
type searchRow struct {
	ID          string
	HusbandName string
	WifeName    string
	NomorAkta   string
	NomorNB     string `gorm:"column:nomor_nb"`
}

func (r searchRow) matches(term string) bool {
	lower := cases.Lower(language.Und)
	for _, v := range []string{r.HusbandName, r.WifeName, r.NomorAkta, r.NomorNB} {
		if strings.Contains(lower.String(v), term) {
			return true
		}
	}
	return false
}

// ListRecords returns records newest first.
func (s *Store) ListRecords(ctx context.Context, f ListFilter) ([]models.MarriageRecord, error) {
	db := s.db.WithContext(ctx)
	q := scopeKecamatan(db.Model(&models.MarriageRecord{}), f.Kecamatan)

	// SQLite's LOWER only folds ASCII, so the search runs over the searchable
	// columns here and the matching rows are loaded by id afterwards.
	if term := strings.TrimSpace(f.Query); term != "" {
		var rows []searchRow
		if err := q.Select("id, husband_name, wife_name, nomor_akta, nomor_nb").
			Order("created_at desc").
			Scan(&rows).Error; err != nil {
			return nil, fmt.Errorf("failed to search records: %w", err)
		}

		term = cases.Lower(language.Und).String(term)
		var ids []string
		for _, r := range rows {
			if f.Limit > 0 && len(ids) == f.Limit {
				break
			}
			if r.matches(term) {
				ids = append(ids, r.ID)
			}
		}
		if len(ids) == 0 {
			return []models.MarriageRecord{}, nil
		}
		q = db.Model(&models.MarriageRecord{}).Where("id IN ?", ids)
	} else if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var records []models.MarriageRecord
	if err := q.Order("created_at desc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return records, nil
}
