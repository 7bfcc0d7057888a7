package classify

import (
	"fmt"
	"strings"
)

const reviewSystemPrompt = `You are a world-class online reputation specialist answering customer reviews for local businesses.

Rules:
1. LANGUAGE: detect the language of the review and always answer in that same language, respecting regional variants (e.g. Spanish from Spain vs Mexico).
2. TONE: warm, professional and short.
3. LOCAL SEO: naturally include keywords about the business activity and the city.
4. ALERT: if the rating is below 3 stars OR the text expresses anger or strong dissatisfaction, do NOT answer and return only {"action":"FLAG","reason":"negative","detectedLanguage":"ISO_CODE"}.
5. Otherwise write the reply and return {"action":"REPLY","content":"your reply","detectedLanguage":"ISO_CODE"}.

Answer ONLY with valid JSON, no markdown and no text before or after.`

// ReviewInput is the review payload sent to the oracle.
type ReviewInput struct {
	Text              string
	Rating            int
	EstablishmentName string
	City              string
	Industry          string
}

func reviewUserPrompt(in ReviewInput) string {
	var b strings.Builder
	b.WriteString("Review received:\n")
	fmt.Fprintf(&b, "- Text: %q\n", in.Text)
	fmt.Fprintf(&b, "- Rating: %d/5\n", in.Rating)
	fmt.Fprintf(&b, "- Business: %s\n", in.EstablishmentName)
	fmt.Fprintf(&b, "- City: %s\n", in.City)
	if in.Industry != "" {
		fmt.Fprintf(&b, "- Activity: %s\n", in.Industry)
	}
	b.WriteString("\nReturn a JSON object with action (FLAG or REPLY), detectedLanguage (ISO code) and, depending on the action:\n")
	b.WriteString("- FLAG: reason\n")
	b.WriteString("- REPLY: content (your reply, optimised for local SEO)")
	return b.String()
}

// Feedback is the most recent public review of a listing.
type Feedback struct {
	Text         string
	AuthorName   string
	RelativeTime string
}

// PitchInput describes a prospect to write an outreach message for.
type PitchInput struct {
	Name           string
	CountryCode    string
	TargetLanguage string
	Rating         float64
	LatestFeedback *Feedback
}

const (
	excerptRunes    = 120
	defaultAuthor   = "a customer"
	defaultRecently = "recently"
)

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptRunes {
		return s
	}
	return string(r[:excerptRunes])
}

func pitchSystemPrompt(targetLanguage, toneGuide string, rating float64) string {
	return fmt.Sprintf(`You are a Reputexa sales representative writing highly personalised opening messages to business owners.
Write the message in %s.
Tone: %s
At most 3 sentences. Tailor it to their rating (%s/5) and situation.`,
		targetLanguage, toneGuide, formatRating(rating))
}

func pitchUserPrompt(in PitchInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a pitch for %q (country: %s, language: %s).\n", in.Name, in.CountryCode, in.TargetLanguage)
	fmt.Fprintf(&b, "- Current rating: %s/5\n", formatRating(in.Rating))
	if fb := in.LatestFeedback; fb != nil {
		author := fb.AuthorName
		if author == "" {
			author = defaultAuthor
		}
		when := fb.RelativeTime
		if when == "" {
			when = defaultRecently
		}
		fmt.Fprintf(&b, "- Latest review by %q %s: %q\n", author, when, excerpt(fb.Text))
	} else {
		b.WriteString("- No recent review\n")
	}
	b.WriteString("Open with the greeting idiomatic to the language (Bonjour, Hello, Hola, etc.). Mention their rating and offer concrete help.")
	return b.String()
}

func formatRating(r float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.1f", r), "0"), ".")
}
