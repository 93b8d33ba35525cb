package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus_Mapping(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{KindNotFound, http.StatusNotFound},
		{KindValidation, http.StatusBadRequest},
		{KindBadRequest, http.StatusBadRequest},
		{KindConflict, http.StatusConflict},
		{KindForbidden, http.StatusForbidden},
		{KindUnauthorized, http.StatusUnauthorized},
		{KindGone, http.StatusGone},
		{KindInternal, http.StatusInternalServerError},
		{KindUnknown, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		err := New(tc.kind, "x")
		if got := err.HTTPStatus(); got != tc.want {
			t.Errorf("kind %d: HTTPStatus() = %d, want %d", tc.kind, got, tc.want)
		}
	}
}

func TestGetKind_PlainErrorIsUnknown(t *testing.T) {
	if got := GetKind(errors.New("plain")); got != KindUnknown {
		t.Fatalf("expected KindUnknown for plain error, got %d", got)
	}
}

func TestIs_MatchesThroughWrapping(t *testing.T) {
	inner := Conflict("request already assigned to another professional")
	wrapped := fmt.Errorf("accept: %w", inner)

	if !Is(wrapped, KindConflict) {
		t.Fatal("expected wrapped conflict to match KindConflict")
	}
	if Is(wrapped, KindNotFound) {
		t.Fatal("did not expect wrapped conflict to match KindNotFound")
	}
}

func TestWrap_PreservesCause(t *testing.T) {
	cause := errors.New("row missing")
	err := Wrap(KindNotFound, "urgent request not found", cause)

	if !errors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
}
