// Package phone validates free-form phone numbers and canonicalizes them into
// international form.
package phone

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/pairlink/pairing-server/internal/util"
)

const (
	minFallbackDigits = 8
	maxDigits         = 15
	minNationalDigits = 7
	maxCallingDigits  = 3
	unknownCountry    = "Unknown"
)

var nonDigits = regexp.MustCompile(`\D`)

// Result is the outcome of normalizing one input string.
type Result struct {
	IsValid        bool   `json:"isValid"`
	Formatted      string `json:"formatted,omitempty"`
	CountryCode    string `json:"countryCode,omitempty"`
	Country        string `json:"country,omitempty"`
	NationalNumber string `json:"nationalNumber,omitempty"`
	Error          string `json:"error,omitempty"`
}

func invalid(reason string) Result {
	return Result{IsValid: false, Error: reason}
}

type candidate struct {
	text   string
	region string
}

type Normalizer struct {
	defaultRegion string
}

func NewNormalizer(defaultRegion string) *Normalizer {
	return &Normalizer{defaultRegion: strings.ToUpper(defaultRegion)}
}

// Normalize tries, in order: a strict parse accepted only for valid assigned
// numbers, a lenient parse accepted for numbers of plausible length, and a
// digits-only fallback that assumes a leading country code. countryHint may be
// a region ("KE"), a calling code ("254"), or empty.
func (n *Normalizer) Normalize(input, countryHint string) Result {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return invalid("phone number is empty")
	}

	digits := nonDigits.ReplaceAllString(raw, "")
	if digits == "" {
		return invalid("phone number contains no digits")
	}
	if len(digits) > maxDigits {
		return invalid("phone number has more than 15 digits")
	}

	candidates := n.candidates(raw, digits, countryHint)

	for _, c := range candidates {
		num, err := phonenumbers.Parse(c.text, c.region)
		if err == nil && phonenumbers.IsValidNumber(num) {
			return fromNumber(num)
		}
	}

	for _, c := range candidates {
		num, err := phonenumbers.Parse(c.text, c.region)
		if err == nil && phonenumbers.IsPossibleNumber(num) {
			log.Debug().Str("input", raw).Msg("phone number accepted by lenient parse")
			return fromNumber(num)
		}
	}

	if len(digits) >= minFallbackDigits {
		log.Debug().Str("input", raw).Msg("phone number accepted by digits fallback")
		return fromDigits(digits)
	}

	return invalid("invalid phone number format")
}

func (n *Normalizer) candidates(raw, digits, countryHint string) []candidate {
	var out []candidate

	if strings.HasPrefix(raw, "+") {
		out = append(out, candidate{text: raw})
	}

	if region := regionForHint(countryHint); region != "" {
		out = append(out, candidate{text: raw, region: region})
	}

	out = append(out, candidate{text: "+" + digits})

	if n.defaultRegion != "" {
		out = append(out, candidate{text: raw, region: n.defaultRegion})
	}

	return out
}

func regionForHint(hint string) string {
	hint = strings.TrimSpace(hint)
	switch {
	case util.IsRegionCode(hint):
		return strings.ToUpper(hint)
	case util.IsCallingCode(hint):
		cc, err := strconv.Atoi(strings.TrimPrefix(hint, "+"))
		if err != nil {
			return ""
		}
		region := phonenumbers.GetRegionCodeForCountryCode(cc)
		if region == phonenumbers.UNKNOWN_REGION {
			return ""
		}
		return region
	default:
		return ""
	}
}

func fromNumber(num *phonenumbers.PhoneNumber) Result {
	cc := int(num.GetCountryCode())

	country := phonenumbers.GetRegionCodeForNumber(num)
	if country == "" || country == phonenumbers.UNKNOWN_REGION {
		country = countryForCallingCode(cc)
	}

	return Result{
		IsValid:        true,
		Formatted:      phonenumbers.Format(num, phonenumbers.INTERNATIONAL),
		CountryCode:    strconv.Itoa(cc),
		Country:        country,
		NationalNumber: phonenumbers.GetNationalSignificantNumber(num),
	}
}

// fromDigits takes up to three leading digits as the calling code while
// leaving at least seven digits for the national number.
func fromDigits(digits string) Result {
	ccLen := maxCallingDigits
	if len(digits)-ccLen < minNationalDigits {
		ccLen = len(digits) - minNationalDigits
	}
	if ccLen < 1 {
		ccLen = 1
	}

	cc, national := digits[:ccLen], digits[ccLen:]
	code, _ := strconv.Atoi(cc)

	return Result{
		IsValid:        true,
		Formatted:      "+" + cc + " " + national,
		CountryCode:    cc,
		Country:        countryForCallingCode(code),
		NationalNumber: national,
	}
}

func countryForCallingCode(cc int) string {
	region := phonenumbers.GetRegionCodeForCountryCode(cc)
	if region == "" || region == phonenumbers.UNKNOWN_REGION {
		return unknownCountry
	}
	return region
}
