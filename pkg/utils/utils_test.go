package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRespondError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, http.StatusTeapot, "Message vide")

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("unexpected content type %q", got)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != `{"error":"Message vide"}` {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	var dst struct{ Title string }
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	if err := DecodeJSON(req, &dst); err != nil {
		t.Fatalf("empty body: %v", err)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Title":"x"}`))
	if err := DecodeJSON(req, &dst); err != nil || dst.Title != "x" {
		t.Fatalf("decode: %v %+v", err, dst)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	if err := DecodeJSON(req, &dst); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestSSEWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	SetupSSEHeaders(rec)

	sse, ok := NewSSEWriter(rec)
	if !ok {
		t.Fatal("recorder should support flushing")
	}
	if err := sse.Data(map[string]string{"type": "delta", "content": "é"}); err != nil {
		t.Fatal(err)
	}
	if err := sse.Pad(4); err != nil {
		t.Fatal(err)
	}

	want := "data: {\"content\":\"é\",\"type\":\"delta\"}\n\n:    \n\n"
	if rec.Body.String() != want {
		t.Fatalf("unexpected stream %q", rec.Body.String())
	}
	if rec.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatal("proxy buffering should be disabled")
	}
	if !rec.Flushed {
		t.Fatal("expected flush")
	}
}
