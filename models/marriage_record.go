package models

import (
	"errors"
	"time"

	"akta-archive/integrity"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrRecordImmutable is returned when something tries to update an archived record.
var ErrRecordImmutable = errors.New("archived records are immutable")

// Document is one stored page or file attached to a record.
type Document struct {
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	File      string `json:"file"` // relative to the record's document directory
	SizeBytes int64  `json:"sizeBytes"`
}

// MarriageRecord represents one archived marriage certificate (akta nikah).
type MarriageRecord struct {
	ID            string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	HusbandName   string `gorm:"not null" json:"husbandName"`
	WifeName      string `gorm:"not null" json:"wifeName"`
	MarriageDate  string `json:"marriageDate"`
	NomorNB       string `gorm:"column:nomor_nb" json:"nomorNB"`
	NomorAkta     string `gorm:"index;not null" json:"nomorAkta"`
	Kecamatan     string `gorm:"index" json:"kecamatan"`
	NomorBok      string `json:"nomorBok"`
	LokasiSimpan  string `json:"lokasiSimpan"`
	ExtractedText string `gorm:"type:text" json:"extractedText"`

	Documents datatypes.JSONSlice[Document] `json:"documents"`

	// Filing metadata, shown on the archive card but not fingerprinted.
	MediaSimpan         string `json:"mediaSimpan"`
	JumlahLembar        int    `json:"jumlahLembar"`
	Tahun               string `json:"tahun"`
	JangkaSimpan        string `json:"jangkaSimpan"`
	TingkatPerkembangan string `json:"tingkatPerkembangan"`

	Fingerprint string    `gorm:"type:varchar(64);index;not null" json:"fingerprint"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// BeforeCreate assigns an ID when the caller did not.
func (r *MarriageRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	return nil
}

// BeforeUpdate keeps stored fingerprints valid for the lifetime of the row.
func (r *MarriageRecord) BeforeUpdate(tx *gorm.DB) error {
	return ErrRecordImmutable
}

// IntegrityFields returns the fingerprinted part of the record.
func (r *MarriageRecord) IntegrityFields() integrity.Fields {
	return integrity.Fields{
		HusbandName:   r.HusbandName,
		WifeName:      r.WifeName,
		MarriageDate:  r.MarriageDate,
		NomorNB:       r.NomorNB,
		NomorAkta:     r.NomorAkta,
		Kecamatan:     r.Kecamatan,
		NomorBok:      r.NomorBok,
		LokasiSimpan:  r.LokasiSimpan,
		ExtractedText: r.ExtractedText,
	}
}

// Sealed pairs the record's fields with its stored fingerprint.
func (r *MarriageRecord) Sealed() integrity.Record {
	return integrity.Record{Fields: r.IntegrityFields(), Fingerprint: r.Fingerprint}
}

// Verify reports whether the record still matches its fingerprint.
func (r *MarriageRecord) Verify() bool {
	return integrity.Verify(r.Sealed())
}
