package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shiftdesk/internal/wire"
)

func TestPostSendsFlattenedMultipartWithToken(t *testing.T) {
	var got map[string][]string
	var header string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		got = r.MultipartForm.Value
		header = r.Header.Get(wire.HeaderCSRF)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "error": "tanggal wajib diisi"}`))
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, CSRFToken: "tok-1"})
	resp, err := c.Post(context.Background(), "/api/reports/activity/", map[string]any{
		"date":   "2024-05-01",
		"items":  []int{4, 5},
		"groups": []map[string]string{{"a": "x"}},
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if resp.Success() || resp.ErrorText() != "tanggal wajib diisi" {
		t.Fatalf("unexpected decoded response %+v", resp.Fields)
	}
	if header != "tok-1" {
		t.Fatalf("expected csrf header, got %q", header)
	}
	want := map[string]string{
		"date":         "2024-05-01",
		"items_0":      "4",
		"items_1":      "5",
		"groups_0_a":   "x",
		wire.FieldCSRF: "tok-1",
	}
	for k, v := range want {
		if len(got[k]) != 1 || got[k][0] != v {
			t.Fatalf("field %s: expected %q, got %v", k, v, got[k])
		}
	}
}

func TestPostKeepsPayloadOrder(t *testing.T) {
	var names []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mr, err := r.MultipartReader()
		if err != nil {
			t.Errorf("multipart reader: %v", err)
			return
		}
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FileName() != "" {
				t.Errorf("field %s sent as a file", part.FormName())
			}
			names = append(names, part.FormName())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true}`))
	}))
	defer srv.Close()

	data := map[string]any{
		"zeta":       "1",
		"alpha":      "2",
		"entries":    []map[string]any{{"sc": 1, "component": "1000"}, {"sc": 0, "component": "7000"}},
		"attachment": []string{"b", "a"},
	}
	payload, err := wire.Flatten(data)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	want := append(payload.Keys(), wire.FieldCSRF)

	c := New(Options{BaseURL: srv.URL, CSRFToken: "tok-1"})
	for i := 0; i < 5; i++ {
		names = nil
		if _, err := c.Post(context.Background(), "/api/reports/activity/", data); err != nil {
			t.Fatalf("post: %v", err)
		}
		if strings.Join(names, ",") != strings.Join(want, ",") {
			t.Fatalf("wire order %v, want %v", names, want)
		}
	}
}

func TestPostRejectsDeepPayloadWithoutRequest(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL})
	_, err := c.Post(context.Background(), "/x/", map[string]any{"a": []any{map[string]any{"b": []int{1}}}})
	if !errors.Is(err, wire.ErrTooDeep) {
		t.Fatalf("expected ErrTooDeep, got %v", err)
	}
	if called {
		t.Fatalf("no request may be issued for an invalid payload")
	}
}

func TestGetEncodesQueryAndDecodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("foreman_id") != "12" || q.Get("status") != "pending" {
			t.Errorf("unexpected query %v", q)
		}
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"reports": []}`))
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL + "/"})
	resp, err := c.Get(context.Background(), "/api/reports/", map[string]string{"foreman_id": "12", "status": "pending"})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status must be passed through, got %d", resp.StatusCode)
	}
	var out struct {
		Reports []any `json:"reports"`
	}
	if err := resp.Decode(&out); err != nil || out.Reports == nil {
		t.Fatalf("decode: %v %+v", err, out)
	}
}

func TestNonJSONAndNetworkFailuresAreTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>Server Error</html>"))
	}))
	c := New(Options{BaseURL: srv.URL})
	_, err := c.Get(context.Background(), "/api/reports/1/", nil)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport for html body, got %v", err)
	}
	var te *Error
	if !errors.As(err, &te) || te.Endpoint != "/api/reports/1/" {
		t.Fatalf("expected *Error with endpoint, got %#v", err)
	}
	srv.Close()

	_, err = c.Post(context.Background(), "/api/reports/clear/", map[string]any{})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport for closed server, got %v", err)
	}
}

func TestDownloadReturnsBytes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("Date,Foreman\n"))
	}))
	defer srv.Close()
	c := New(Options{BaseURL: srv.URL})
	data, ct, err := c.Download(context.Background(), "/api/reports/export/csv/")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if string(data) != "Date,Foreman\n" || ct != "text/csv" {
		t.Fatalf("unexpected download %q %q", data, ct)
	}
}
