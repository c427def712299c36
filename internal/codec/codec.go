// Package codec generates hotspot credentials and converts quota values
// between their human-readable labels and the RouterOS wire encoding.
package codec

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
)

const (
	// UnlimitedLabel is the label used for a zero (no limit) quota.
	UnlimitedLabel = "unlimited"

	DefaultUsernameDigits  = 6
	DefaultPasswordLength  = 8
	passwordAlphabet       = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	usernameSuffixAlphabet = "0123456789"
)

// FormatError reports a quota label that does not match the expected grammar.
type FormatError struct {
	Label string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unrecognized quota label %q", e.Label)
}

// GenerateUsername returns prefix followed by a random decimal suffix of the
// given number of digits (DefaultUsernameDigits when digits <= 0). The result
// is not globally unique; batch-level uniqueness is the caller's concern.
func GenerateUsername(prefix string, digits int) string {
	if digits <= 0 {
		digits = DefaultUsernameDigits
	}
	return prefix + randomString(usernameSuffixAlphabet, digits)
}

// GeneratePassword returns a random string over letters and digits of the
// given length (DefaultPasswordLength when length <= 0).
func GeneratePassword(length int) string {
	if length <= 0 {
		length = DefaultPasswordLength
	}
	return randomString(passwordAlphabet, length)
}

func randomString(alphabet string, n int) string {
	max := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			panic(fmt.Sprintf("codec: random source unavailable: %v", err))
		}
		b[i] = alphabet[idx.Int64()]
	}
	return string(b)
}

// FormatDataQuota renders a megabyte count as a human label.
// 0 is unlimited, values below 1024 stay in MB, 1024 and up become GB with
// one decimal (1024 -> "1.0 GB").
func FormatDataQuota(mb int) string {
	switch {
	case mb == 0:
		return UnlimitedLabel
	case mb < 1024:
		return fmt.Sprintf("%d MB", mb)
	default:
		return fmt.Sprintf("%.1f GB", float64(mb)/1024)
	}
}

// FormatTimeQuota renders an hour count as a human label.
func FormatTimeQuota(hours int) string {
	switch {
	case hours == 0:
		return UnlimitedLabel
	case hours < 24:
		return fmt.Sprintf("%d %s", hours, plural(hours, "hour"))
	default:
		days := hours / 24
		rem := hours % 24
		if rem == 0 {
			return fmt.Sprintf("%d %s", days, plural(days, "day"))
		}
		return fmt.Sprintf("%d %s and %d %s", days, plural(days, "day"), rem, plural(rem, "hour"))
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return unit
	}
	return unit + "s"
}

// DataQuotaToWire converts a data quota label back to the device wire value:
// a megabyte count with an "M" suffix. The unlimited label maps to the empty
// wire value. GB labels round to the nearest megabyte.
func DataQuotaToWire(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" || label == UnlimitedLabel {
		return "", nil
	}

	fields := strings.Fields(label)
	if len(fields) != 2 {
		return "", &FormatError{Label: label}
	}

	switch fields[1] {
	case "MB":
		mb, err := strconv.Atoi(fields[0])
		if err != nil || mb < 0 {
			return "", &FormatError{Label: label}
		}
		return strconv.Itoa(mb) + "M", nil
	case "GB":
		gb, err := strconv.ParseFloat(fields[0], 64)
		if err != nil || gb < 0 {
			return "", &FormatError{Label: label}
		}
		return strconv.Itoa(int(math.Round(gb*1024))) + "M", nil
	default:
		return "", &FormatError{Label: label}
	}
}

// TimeQuotaToWire converts a time quota label back to the device wire value:
// a total hour count with an "h" suffix. Accepts the "N hours", "D days" and
// "D days and H hours" forms produced by FormatTimeQuota.
func TimeQuotaToWire(label string) (string, error) {
	label = strings.TrimSpace(label)
	if label == "" || label == UnlimitedLabel {
		return "", nil
	}

	fields := strings.Fields(label)
	switch {
	case len(fields) == 2 && isHourUnit(fields[1]):
		hours, err := strconv.Atoi(fields[0])
		if err != nil || hours < 0 {
			return "", &FormatError{Label: label}
		}
		return strconv.Itoa(hours) + "h", nil
	case len(fields) == 2 && isDayUnit(fields[1]):
		days, err := strconv.Atoi(fields[0])
		if err != nil || days < 0 {
			return "", &FormatError{Label: label}
		}
		return strconv.Itoa(days*24) + "h", nil
	case len(fields) == 5 && isDayUnit(fields[1]) && fields[2] == "and" && isHourUnit(fields[4]):
		days, err := strconv.Atoi(fields[0])
		if err != nil || days < 0 {
			return "", &FormatError{Label: label}
		}
		hours, err := strconv.Atoi(fields[3])
		if err != nil || hours < 0 {
			return "", &FormatError{Label: label}
		}
		return strconv.Itoa(days*24+hours) + "h", nil
	default:
		return "", &FormatError{Label: label}
	}
}

func isHourUnit(s string) bool { return s == "hour" || s == "hours" }
func isDayUnit(s string) bool  { return s == "day" || s == "days" }
