package model

import (
	"time"
)

// ProspectStatus is the sales contact state of a prospect.
type ProspectStatus string

const (
	ProspectStatusToContact ProspectStatus = "TO_CONTACT"
	ProspectStatusContacted ProspectStatus = "CONTACTED"
	ProspectStatusConverted ProspectStatus = "CONVERTED"
	ProspectStatusRejected  ProspectStatus = "REJECTED"
)

// Prospect is a discovered business listing worth an outreach pitch.
// PlaceID is the natural key: one row per external listing.
type Prospect struct {
	PlaceID            string         `json:"place_id"`
	EstablishmentName  string         `json:"establishment_name"`
	Address            string         `json:"address,omitempty"`
	City               string         `json:"city"`
	Category           string         `json:"category"`
	CountryCode        string         `json:"country_code"`
	Rating             float64        `json:"rating"`
	ReviewCount        int            `json:"review_count"`
	LastReviewText     *string        `json:"last_review_text,omitempty"`
	LastReviewAuthor   *string        `json:"last_review_author,omitempty"`
	LastReviewRelative *string        `json:"last_review_relative,omitempty"`
	Pitch              *string        `json:"pitch,omitempty"`
	Status             ProspectStatus `json:"status"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}
