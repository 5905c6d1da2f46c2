// Package integrity fingerprints the semantic fields of an archived marriage
// record and checks a stored fingerprint against them.
//
// The canonical form is frozen. Fingerprints already printed on paper or
// encoded in QR codes must keep verifying, so the field order, the separator,
// the trimming rules and the transcript limit never change.
package integrity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"runtime"
	"strings"
	"unicode"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// Separator joins canonical fields. Values are not escaped, so a field
	// containing "|" can collide with a different split of the same text.
	Separator = "|"

	// TranscriptLimit is how many characters of the extracted transcript
	// take part in the fingerprint.
	TranscriptLimit = 1000

	// Length is the size of a rendered fingerprint.
	Length = sha256.Size * 2
)

// Fields is the fingerprinted part of a record. Anything not listed here
// (attached documents, timestamps, uploader, retention) is outside the hash.
type Fields struct {
	HusbandName   string
	WifeName      string
	MarriageDate  string
	NomorNB       string
	NomorAkta     string
	Kecamatan     string
	NomorBok      string
	LokasiSimpan  string
	ExtractedText string
}

// Record pairs the current field values with the fingerprint issued when the
// record was created.
type Record struct {
	Fields
	Fingerprint string
}

// Canonicalize returns the string that gets hashed.
func Canonicalize(f Fields) string {
	parts := [...]string{
		f.HusbandName,
		f.WifeName,
		f.MarriageDate,
		f.NomorNB,
		f.NomorAkta,
		f.Kecamatan,
		f.NomorBok,
		f.LokasiSimpan,
		truncate(strings.ToValidUTF8(f.ExtractedText, "\uFFFD"), TranscriptLimit),
	}

	// A Caser carries state and must not be shared across goroutines.
	upper := cases.Upper(language.Und)
	for i, p := range parts {
		p = strings.ToValidUTF8(p, "\uFFFD")
		parts[i] = upper.String(strings.TrimFunc(p, isWhitespace))
	}
	return strings.Join(parts[:], Separator)
}

// ComputeFingerprint returns the lowercase hex SHA-256 of the canonical form.
func ComputeFingerprint(f Fields) string {
	sum := sha256.Sum256([]byte(Canonicalize(f)))
	return hex.EncodeToString(sum[:])
}

// Verify reports whether r's fingerprint matches its current fields. A record
// without a fingerprint never verifies.
func Verify(r Record) bool {
	if r.Fingerprint == "" {
		return false
	}
	return ComputeFingerprint(r.Fields) == r.Fingerprint
}

// VerifyBatch verifies every record independently and returns the outcomes in
// input order. Records not reached before ctx is done report false.
func VerifyBatch(ctx context.Context, records []Record) []bool {
	results := make([]bool, len(records))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			results[i] = Verify(records[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// IsFingerprint reports whether s has the shape of a rendered fingerprint.
func IsFingerprint(s string) bool {
	if len(s) != Length {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// truncate keeps the first limit UTF-16 code units of s. When the cut lands
// inside a surrogate pair the dangling half is emitted as U+FFFD, which is
// what fingerprints issued by the browser client contain.
func truncate(s string, limit int) string {
	units := 0
	for i, r := range s {
		w := 1
		if r > 0xFFFF {
			w = 2
		}
		if units+w > limit {
			if units < limit {
				return s[:i] + "\uFFFD"
			}
			return s[:i]
		}
		units += w
	}
	return s
}

// isWhitespace matches the ECMAScript WhiteSpace and LineTerminator sets.
// U+0085 is deliberately absent and U+FEFF present.
func isWhitespace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00A0', '\uFEFF', '\u2028', '\u2029':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}
