// Package profile holds the per-country tone and language table used to adapt
// outreach pitches.
package profile

import (
	"strings"

	"golang.org/x/text/language"
)

// Profile describes how to address establishments in one country.
type Profile struct {
	Tone     string `json:"tone"`
	Currency string `json:"currency"`
	Locale   string `json:"locale"`
}

// Tag parses the profile locale. Unknown locales yield language.Und.
func (p Profile) Tag() language.Tag {
	tag, err := language.Parse(p.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

// LanguageCode is the base language subtag of the locale, such as "ja" for
// ja-JP, or "" when the locale does not parse.
func (p Profile) LanguageCode() string {
	tag := p.Tag()
	if tag.IsRoot() {
		return ""
	}
	base, _ := tag.Base()
	return base.String()
}

// Default is returned for unknown or empty country codes.
var Default = Profile{Tone: "professional/warm", Currency: "EUR", Locale: "fr-FR"}

// DefaultLanguage is the pitch language for countries outside the table.
const DefaultLanguage = "French"

// DefaultCountry is used when a batch run does not name a country.
const DefaultCountry = "FR"

var profiles = map[string]Profile{
	"US": {Tone: "aggressive/roi", Currency: "USD", Locale: "en-US"},
	"FR": {Tone: "protective/quality", Currency: "EUR", Locale: "fr-FR"},
	"JP": {Tone: "formal/respect", Currency: "JPY", Locale: "ja-JP"},
	"DE": {Tone: "precise/efficiency", Currency: "EUR", Locale: "de-DE"},
	"ES": {Tone: "warm/trust", Currency: "EUR", Locale: "es-ES"},
	"IT": {Tone: "warm/heritage", Currency: "EUR", Locale: "it-IT"},
	"GB": {Tone: "professional/authority", Currency: "GBP", Locale: "en-GB"},
	"AE": {Tone: "premium/excellence", Currency: "AED", Locale: "ar-AE"},
	"MX": {Tone: "warm/personal", Currency: "MXN", Locale: "es-MX"},
	"BR": {Tone: "enthusiastic/growth", Currency: "BRL", Locale: "pt-BR"},
}

var languages = map[string]string{
	"FR": "French",
	"US": "English",
	"GB": "English",
	"DE": "German",
	"ES": "Spanish",
	"IT": "Italian",
	"JP": "Japanese",
	"AE": "Arabic",
	"MX": "Spanish (Mexico)",
	"BR": "Brazilian Portuguese",
}

const fallbackTone = "professional/warm"

var toneGuides = map[string]string{
	"aggressive/roi":     `Focus on revenue and growth. Be direct and ROI-oriented. Use words like "revenue", "growth", "conversion".`,
	"protective/quality": `Focus on quality and reputation protection. Talk about quality, image and protecting the brand's image.`,
	"formal/respect":     `Be ultra-polite and respectful. Use formal language. Emphasize respect and customer service.`,
	"precise/efficiency": `Be precise and efficiency-focused. Professional, structured, no fluff.`,
	"warm/trust":         `Warm and trust-building. Personal, empathetic, emphasize trust.`,
	fallbackTone:         `Professional yet warm. Balanced, empathetic, solution-oriented.`,
}

// Normalize upper-cases and trims a country code.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Lookup returns the profile for a country code, or Default.
func Lookup(code string) Profile {
	if p, ok := profiles[Normalize(code)]; ok {
		return p
	}
	return Default
}

// Known reports whether the code has a dedicated profile.
func Known(code string) bool {
	_, ok := profiles[Normalize(code)]
	return ok
}

// LanguageFor returns the pitch language for a country code.
func LanguageFor(code string) string {
	if l, ok := languages[Normalize(code)]; ok {
		return l
	}
	return DefaultLanguage
}

// ToneGuide returns the natural-language guidance for a tone descriptor.
// Tones without a dedicated guide use the professional/warm guidance.
func ToneGuide(tone string) string {
	if g, ok := toneGuides[tone]; ok {
		return g
	}
	return toneGuides[fallbackTone]
}
