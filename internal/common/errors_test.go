package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"validation verbatim", Validation("prompt is required"), http.StatusBadRequest, "prompt is required"},
		{"auth generic", Unauthenticated(), http.StatusUnauthorized, "unauthorized"},
		{"conflict", Conflict("user already exists"), http.StatusConflict, "user already exists"},
		{"upstream hides detail", Upstream(errors.New("openai: 500 boom")), http.StatusBadGateway, "upstream generation failed"},
		{"storage hides detail", Storage(errors.New("disk full")), http.StatusInternalServerError, "internal error"},
		{"wrapped", fmt.Errorf("submit: %w", Validation("bad")), http.StatusBadRequest, "bad"},
		{"unknown", errors.New("whatever"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := Status(tc.err)
			if status != tc.status || msg != tc.msg {
				t.Fatalf("got (%d, %q), want (%d, %q)", status, msg, tc.status, tc.msg)
			}
		})
	}
}

func TestError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage(cause)
	if !errors.Is(err, ErrStorage) {
		t.Fatalf("expected storage kind")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be reachable")
	}
}

func TestStatus_NeverForbidden(t *testing.T) {
	for _, err := range []error{
		Validation("x"), Unauthenticated(), Conflict("x"), Upstream(errors.New("x")),
		Storage(errors.New("x")), TooManyRequests("x"), errors.New("x"),
	} {
		if status, _ := Status(err); status == http.StatusForbidden {
			t.Fatalf("%v mapped to 403", err)
		}
	}
}
