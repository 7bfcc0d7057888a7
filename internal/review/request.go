package review

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// IngestRequest carries the raw fields of a new review.
type IngestRequest struct {
	ReviewText        string `json:"reviewText" validate:"required"`
	Rating            int    `json:"rating" validate:"required,min=1,max=5"`
	EstablishmentName string `json:"establishmentName" validate:"required"`
	City              string `json:"city" validate:"required"`
	Industry          string `json:"industry,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Normalize trims surrounding whitespace from the text fields.
func (r *IngestRequest) Normalize() {
	r.ReviewText = strings.TrimSpace(r.ReviewText)
	r.EstablishmentName = strings.TrimSpace(r.EstablishmentName)
	r.City = strings.TrimSpace(r.City)
	r.Industry = strings.TrimSpace(r.Industry)
}

// Validate returns a ValidationError naming every missing or out-of-range
// field, or nil.
func (r IngestRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: []string{"body"}}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}

// ingestWire is the JSON shape of IngestRequest. Rating is decoded as a
// number so 4 and 4.0 are both accepted.
type ingestWire struct {
	ReviewText        string   `json:"reviewText"`
	Rating            *float64 `json:"rating"`
	EstablishmentName string   `json:"establishmentName"`
	City              string   `json:"city"`
	Industry          string   `json:"industry,omitempty"`
}

// DecodeIngestRequest reads a JSON ingestion payload. A non-numeric or
// fractional rating and other type mismatches surface as a ValidationError
// on that field. Errors reading r are returned wrapped.
func DecodeIngestRequest(r io.Reader) (IngestRequest, error) {
	var wire ingestWire
	if err := json.NewDecoder(r).Decode(&wire); err != nil {
		var (
			typeErr   *json.UnmarshalTypeError
			syntaxErr *json.SyntaxError
		)
		switch {
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return IngestRequest{}, &ValidationError{Fields: []string{typeErr.Field}}
		case errors.As(err, &syntaxErr), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.As(err, &typeErr):
			return IngestRequest{}, &ValidationError{Fields: []string{"body"}}
		default:
			return IngestRequest{}, eris.Wrap(err, "review: read request")
		}
	}

	req := IngestRequest{
		ReviewText:        wire.ReviewText,
		EstablishmentName: wire.EstablishmentName,
		City:              wire.City,
		Industry:          wire.Industry,
	}
	if wire.Rating != nil {
		f := *wire.Rating
		if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
			return req, &ValidationError{Fields: []string{"rating"}}
		}
		req.Rating = int(f)
	}
	return req, nil
}
