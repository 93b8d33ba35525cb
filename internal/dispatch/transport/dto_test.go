package transport

import (
	"testing"

	"urgent_dispatch_backend/platform/validator"
)

func validCreateRequest() CreateRequestRequest {
	return CreateRequestRequest{
		Description: "burst pipe in the kitchen",
		Latitude:    -34.6118,
		Longitude:   -58.3960,
		RadiusKM:    5,
		Category:    "plumber",
	}
}

func TestCreateRequestRequest_Valid(t *testing.T) {
	val := validator.New()
	if err := val.Struct(validCreateRequest()); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}

func TestCreateRequestRequest_BoundaryValidation(t *testing.T) {
	val := validator.New()

	cases := []struct {
		name   string
		mutate func(*CreateRequestRequest)
	}{
		{"latitude above range", func(r *CreateRequestRequest) { r.Latitude = 90.01 }},
		{"latitude below range", func(r *CreateRequestRequest) { r.Latitude = -90.01 }},
		{"longitude above range", func(r *CreateRequestRequest) { r.Longitude = 180.01 }},
		{"longitude below range", func(r *CreateRequestRequest) { r.Longitude = -180.01 }},
		{"missing category", func(r *CreateRequestRequest) { r.Category = "" }},
		{"missing description", func(r *CreateRequestRequest) { r.Description = "" }},
		{"zero radius", func(r *CreateRequestRequest) { r.RadiusKM = 0 }},
		{"negative radius", func(r *CreateRequestRequest) { r.RadiusKM = -1 }},
	}

	for _, tc := range cases {
		req := validCreateRequest()
		tc.mutate(&req)
		if err := val.Struct(req); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

func TestCreateRequestRequest_ExtremesAreValid(t *testing.T) {
	val := validator.New()

	req := validCreateRequest()
	req.Latitude = 90
	req.Longitude = -180
	if err := val.Struct(req); err != nil {
		t.Fatalf("expected coordinate extremes to validate, got %v", err)
	}
}

func TestCompleteRequestRequest_RatingBounds(t *testing.T) {
	val := validator.New()

	for _, rating := range []int16{1, 3, 5} {
		r := rating
		if err := val.Struct(CompleteRequestRequest{Rating: &r}); err != nil {
			t.Errorf("rating %d: expected valid, got %v", rating, err)
		}
	}

	for _, rating := range []int16{0, 6} {
		r := rating
		if err := val.Struct(CompleteRequestRequest{Rating: &r}); err == nil {
			t.Errorf("rating %d: expected validation error", rating)
		}
	}

	// Rating is optional.
	if err := val.Struct(CompleteRequestRequest{}); err != nil {
		t.Fatalf("expected empty completion to validate, got %v", err)
	}
}
