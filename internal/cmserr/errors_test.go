package cmserr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("Missing required fields: %s", "slug"), http.StatusBadRequest},
		{Conflict("Page with this slug already exists"), http.StatusConflict},
		{NotFound("Page"), http.StatusNotFound},
		{Internal("list pages", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("untagged"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", NotFound("Block")), http.StatusNotFound},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestMessage(t *testing.T) {
	if got := Message(NotFound("Navigation item")); got != "Navigation item not found" {
		t.Fatalf("got %q", got)
	}
	if got := Message(errors.New("db down")); got != "Internal server error" {
		t.Fatalf("got %q", got)
	}
	cause := errors.New("timeout")
	err := Internal("get page", cause)
	if !errors.Is(err, cause) {
		t.Fatal("Internal must unwrap to its cause")
	}
	if Message(err) != "get page" {
		t.Fatalf("got %q", Message(err))
	}
}

func TestIs(t *testing.T) {
	if !Is(fmt.Errorf("x: %w", Conflict("dup")), KindConflict) {
		t.Fatal("expected conflict")
	}
	if Is(nil, KindInternal) {
		t.Fatal("nil is no kind")
	}
}
