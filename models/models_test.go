package models_test

import (
	"testing"

	"akta-archive/models"
	"akta-archive/tests"

	"github.com/stretchr/testify/assert"
)

func TestMarriageRecordVerify(t *testing.T) {
	rec := tests.SealedRecord("Ahmad", "Siti", "1/2024", "Sumbersari")
	assert.True(t, rec.Verify())

	// Filing metadata is outside the fingerprint.
	rec.JumlahLembar = 9
	rec.UploadedBy = "someone_else"
	rec.Documents = append(rec.Documents, models.Document{Name: "extra.pdf"})
	assert.True(t, rec.Verify())

	rec.NomorBok = "B-2"
	assert.False(t, rec.Verify())
}

func TestRoles(t *testing.T) {
	assert.True(t, models.RoleAdminKabupaten.Valid())
	assert.True(t, models.RoleAdminKecamatan.Valid())
	assert.False(t, models.Role("admin").Valid())
}

func TestIsKecamatan(t *testing.T) {
	assert.Len(t, models.KecamatanJember, 31)
	assert.True(t, models.IsKecamatan("Sumbersari"))
	assert.False(t, models.IsKecamatan("sumbersari"))
	assert.False(t, models.IsKecamatan(models.AllKecamatan))
	assert.False(t, models.IsKecamatan(""))
}
