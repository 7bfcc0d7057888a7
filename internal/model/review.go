// Package model defines the review and prospect records shared by the pipelines and the store.
package model

import (
	"time"
)

// ReviewStatus is the lifecycle state of a customer review.
type ReviewStatus string

const (
	ReviewStatusPending ReviewStatus = "PENDING"
	ReviewStatusReplied ReviewStatus = "REPLIED"
	ReviewStatusFlagged ReviewStatus = "FLAGGED"
)

// Terminal reports whether no further classification may touch the review.
func (s ReviewStatus) Terminal() bool {
	return s == ReviewStatusReplied || s == ReviewStatusFlagged
}

// Review is a customer review and the outcome of its classification.
type Review struct {
	ID                string       `json:"id"`
	ReviewText        string       `json:"review_text"`
	Rating            int          `json:"rating"`
	EstablishmentName string       `json:"establishment_name"`
	City              string       `json:"city"`
	Industry          string       `json:"industry,omitempty"`
	DetectedLanguage  string       `json:"detected_language,omitempty"`
	ResponseText      *string      `json:"response_text"`
	Status            ReviewStatus `json:"status"`
	IsSecurityFlagged bool         `json:"is_security_flagged"`
	SecurityAdvice    *string      `json:"security_advice,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Resolved reports whether the review already carries an outcome.
func (r *Review) Resolved() bool {
	return r.ResponseText != nil || r.Status.Terminal()
}

// Resolution holds the derived fields written by the classification step.
type Resolution struct {
	DetectedLanguage  string
	ResponseText      *string
	Status            ReviewStatus
	IsSecurityFlagged bool
	SecurityAdvice    *string
}

// Apply copies the resolution onto the review.
func (r *Review) Apply(res Resolution) {
	r.DetectedLanguage = res.DetectedLanguage
	r.ResponseText = res.ResponseText
	r.Status = res.Status
	r.IsSecurityFlagged = res.IsSecurityFlagged
	r.SecurityAdvice = res.SecurityAdvice
}

// FlaggedResolution builds the resolution for a review the oracle refused to
// answer. Flagged reviews never carry a response.
func FlaggedResolution(reason, lang string) Resolution {
	res := Resolution{
		DetectedLanguage:  lang,
		Status:            ReviewStatusFlagged,
		IsSecurityFlagged: true,
	}
	if reason != "" {
		res.SecurityAdvice = &reason
	}
	return res
}

// ReplyResolution builds the resolution for a generated reply. An empty reply
// leaves the review PENDING with no response.
func ReplyResolution(content, lang string) Resolution {
	if content == "" {
		return Resolution{
			DetectedLanguage: lang,
			Status:           ReviewStatusPending,
		}
	}
	return Resolution{
		DetectedLanguage: lang,
		ResponseText:     &content,
		Status:           ReviewStatusReplied,
	}
}
