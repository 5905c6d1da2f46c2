package models

import "slices"

// Role is the access level carried by a session.
type Role string

const (
	RoleAdminKabupaten Role = "ADMIN_KABUPATEN"
	RoleAdminKecamatan Role = "ADMIN_KECAMATAN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdminKabupaten || r == RoleAdminKecamatan
}

// AllKecamatan selects every district in listings and stats.
const AllKecamatan = "Semua"

// DefaultKecamatan is used for records uploaded without a district.
const DefaultKecamatan = "Umum"

// KecamatanJember lists the 31 districts of Kabupaten Jember.
var KecamatanJember = []string{
	"Ajung", "Ambulu", "Arjasa", "Balung", "Bangsalsari", "Gumukmas",
	"Jelbuk", "Jenggawah", "Jombang", "Kalisat", "Kaliwates", "Kencong",
	"Ledokombo", "Mayang", "Mumbulsari", "Pakusari", "Panti", "Patrang",
	"Puger", "Rambipuji", "Semboro", "Silo", "Sukorambi", "Sukowono",
	"Sumberbaru", "Sumberjambe", "Sumbersari", "Tanggul", "Tempurejo",
	"Umbulsari", "Wuluhan",
}

// IsKecamatan reports whether name is one of KecamatanJember.
func IsKecamatan(name string) bool {
	return slices.Contains(KecamatanJember, name)
}
