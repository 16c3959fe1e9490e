package appraisal

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/jackc/pgx/v5/pgtype"
)

// MaxTextLength is the maximum number of characters kept by NormalizeText.
const MaxTextLength = 100

// Engine size bounds. numeric(3,1) tops out at 99.9; readings above
// engineCCThreshold are taken to be cubic centimeters.
const (
	maxEngineLiters   = 99.9
	engineCCThreshold = 999.0
)

// Model year bounds, inclusive.
const (
	MinModelYear int64 = 1900
	MaxModelYear int64 = 2030
)

// Whitespace includes the ASCII information separators that show up in DBF
// memo text.
const spaceClass = `\s\x{0b}\x{1c}-\x{1f}\x{85}\p{Z}`

var (
	whitespaceRun = regexp.MustCompile(`[` + spaceClass + `]+`)
	disallowed    = regexp.MustCompile(`[^\p{L}\p{N}_` + spaceClass + `\-./]`)
	nonNumeric    = regexp.MustCompile(`[^0-9.,\-]`)
)

// Date layouts tried in priority order: Y-m-d, d/m/Y, m/d/Y, Y/m/d.
var dateLayouts = []string{"2006-1-2", "2/1/2006", "1/2/2006", "2006/1/2"}

// NormalizeText cleans a free-text value. Null, blank and placeholder values
// (NULL, NONE, N/A) become "". Whitespace runs collapse to one space, anything
// other than letters, digits, underscore, whitespace, '-', '.' and '/' is
// removed, and the result is cut to MaxTextLength characters.
func NormalizeText(v any) string {
	s, ok := stringify(v)
	if !ok {
		return ""
	}
	s = strings.TrimFunc(strings.ToValidUTF8(s, ""), isSpace)
	if isPlaceholder(s) {
		return ""
	}

	s = whitespaceRun.ReplaceAllString(s, " ")
	s = disallowed.ReplaceAllString(s, "")

	if utf8.RuneCountInString(s) > MaxTextLength {
		s = string([]rune(s)[:MaxTextLength])
	}
	return s
}

// NormalizeFloat parses a loosely formatted number. Everything except digits,
// '.', ',' and '-' is stripped and ',' is read as the decimal separator.
// Null, placeholder and unparseable values report false.
func NormalizeFloat(v any) (float64, bool) {
	s, ok := stringify(v)
	if !ok {
		return 0, false
	}
	s = strings.TrimSpace(s)
	if isPlaceholder(s) {
		return 0, false
	}

	s = nonNumeric.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, ",", ".")

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeInt is NormalizeFloat truncated toward zero.
func NormalizeInt(v any) (int64, bool) {
	f, ok := NormalizeFloat(v)
	if !ok || math.Abs(f) >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// NormalizeDate parses a date string against dateLayouts in order. time.Time
// values pass through; every other type reports false.
func NormalizeDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, t); err == nil {
				return d, true
			}
		}
	}
	return time.Time{}, false
}

// NormalizeEngineSize reads a displacement that may be in liters or cubic
// centimeters. Values up to 99.9 are liters; values above 999 are cc and get
// converted; anything in between is ambiguous and discarded.
func NormalizeEngineSize(v any) (float64, bool) {
	f, ok := NormalizeFloat(v)
	if !ok {
		return 0, false
	}
	switch {
	case f > engineCCThreshold:
		return roundTenth(f / 1000), true
	case f > maxEngineLiters:
		return 0, false
	default:
		return roundTenth(f), true
	}
}

// NormalizeModelYear accepts integers and all-digit strings within
// [MinModelYear, MaxModelYear].
func NormalizeModelYear(v any) (int64, bool) {
	var year int64
	switch t := v.(type) {
	case string:
		if !isDigits(t) {
			return 0, false
		}
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0, false
		}
		year = n
	default:
		n, ok := integerValue(v)
		if !ok {
			return 0, false
		}
		year = n
	}

	if year < MinModelYear || year > MaxModelYear {
		return 0, false
	}
	return year, true
}

// NormalizeMileage reads an odometer value. Strings may use ',' or '.' as
// thousands separators; both are dropped, so "10.000" is ten thousand.
// Floats must be whole. Negative and free-text values report false.
func NormalizeMileage(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		s = strings.ReplaceAll(s, ",", "")
		s = strings.ReplaceAll(s, ".", "")
		if !isDigits(s) {
			return 0, false
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	case float64:
		return wholeNonNegative(t)
	case float32:
		return wholeNonNegative(float64(t))
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return 0, false
		}
		return wholeNonNegative(f.Float64)
	default:
		n, ok := integerValue(v)
		if !ok || n < 0 {
			return 0, false
		}
		return n, true
	}
}

func wholeNonNegative(f float64) (int64, bool) {
	if math.IsNaN(f) || f < 0 || f != math.Trunc(f) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// roundTenth rounds the exact binary value to one decimal place, ties to even,
// so 2.45 (stored as 2.4500000000000002) becomes 2.5 and 1.25 becomes 1.2.
func roundTenth(f float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(f, 'f', 1, 64), 64)
	return r
}

// integerValue unwraps the Go integer kinds.
func integerValue(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int8:
		return int64(t), true
	case int16:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case uint8:
		return int64(t), true
	case uint16:
		return int64(t), true
	case uint32:
		return int64(t), true
	case uint64:
		if t > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case uint:
		if uint64(t) > math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	}
	return 0, false
}

// stringify renders a staging value as text. It reports false for null
// values, including NaN floats and invalid pgtype wrappers.
func stringify(v any) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return t, true
	case []byte:
		return string(t), true
	case float64:
		if math.IsNaN(t) {
			return "", false
		}
		return formatFloat(t), true
	case float32:
		if math.IsNaN(float64(t)) {
			return "", false
		}
		return formatFloat(float64(t)), true
	case bool:
		if t {
			return "True", true
		}
		return "False", true
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02"), true
		}
		return t.Format("2006-01-02 15:04:05"), true
	case pgtype.Numeric:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return "", false
		}
		return formatFloat(f.Float64), true
	case pgtype.Text:
		if !t.Valid {
			return "", false
		}
		return t.String, true
	}
	if n, ok := integerValue(v); ok {
		return strconv.FormatInt(n, 10), true
	}
	return fmt.Sprint(v), true
}

// formatFloat keeps a trailing ".0" on whole numbers so "12345.0" and
// 12345.0 stringify the same way.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func isPlaceholder(s string) bool {
	if s == "" {
		return true
	}
	switch strings.ToUpper(s) {
	case "NULL", "NONE", "N/A":
		return true
	}
	return false
}

func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1c && r <= 0x1f)
}

// isDigits reports whether s is non-empty and made only of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
