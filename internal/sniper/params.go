package sniper

import (
	"fmt"
	"strings"

	"github.com/reputexa/reputexa/internal/profile"
)

// Default batch target.
const (
	DefaultCity     = "Lyon"
	DefaultCategory = "Restaurants"
)

// Params names one (city, category, country) sweep.
type Params struct {
	City        string `json:"city"`
	Category    string `json:"category"`
	CountryCode string `json:"country_code"`
}

// WithDefaults fills empty fields with Lyon, Restaurants and FR and
// upper-cases the country code.
func (p Params) WithDefaults() Params {
	p.City = strings.TrimSpace(p.City)
	p.Category = strings.TrimSpace(p.Category)
	if p.City == "" {
		p.City = DefaultCity
	}
	if p.Category == "" {
		p.Category = DefaultCategory
	}
	p.CountryCode = profile.Normalize(p.CountryCode)
	if p.CountryCode == "" {
		p.CountryCode = profile.DefaultCountry
	}
	return p
}

// Query is the single text search issued for the sweep.
func (p Params) Query() string {
	return fmt.Sprintf("%s in %s", p.Category, p.City)
}

// TargetLanguage is the pitch language for the sweep's country.
func (p Params) TargetLanguage() string {
	return profile.LanguageFor(p.CountryCode)
}

// SearchLanguage is the language hint sent with the text search: the base
// language of the country's locale, or fallback for countries without a
// profile.
func (p Params) SearchLanguage(fallback string) string {
	if !profile.Known(p.CountryCode) {
		return fallback
	}
	if code := profile.Lookup(p.CountryCode).LanguageCode(); code != "" {
		return code
	}
	return fallback
}

// FromArgs maps positional CLI arguments (city, category, country) onto
// Params; missing trailing arguments keep their defaults.
func FromArgs(args []string) Params {
	var p Params
	if len(args) > 0 {
		p.City = args[0]
	}
	if len(args) > 1 {
		p.Category = args[1]
	}
	if len(args) > 2 {
		p.CountryCode = args[2]
	}
	return p.WithDefaults()
}

// Band is the closed rating interval a candidate must fall in.
type Band struct {
	Min float64
	Max float64
}

// DefaultBand is [3.2, 4.1].
var DefaultBand = Band{Min: 3.2, Max: 4.1}

// Contains reports whether rating lies in the band, bounds included. A
// missing rating is passed as 0 and never qualifies under the default band.
func (b Band) Contains(rating float64) bool {
	return rating >= b.Min && rating <= b.Max
}
