package domain

import (
	"encoding/json"
	"testing"
)

func TestReportIDAcceptsNumberAndString(t *testing.T) {
	var r Report
	if err := json.Unmarshal([]byte(`{"id":42,"title":"x"}`), &r); err != nil {
		t.Fatalf("unmarshal number id: %v", err)
	}
	if r.ID != "42" {
		t.Fatalf("expected id 42, got %q", r.ID)
	}
	if err := json.Unmarshal([]byte(`{"id":"rpt-7"}`), &r); err != nil {
		t.Fatalf("unmarshal string id: %v", err)
	}
	if r.ID != "rpt-7" {
		t.Fatalf("expected id rpt-7, got %q", r.ID)
	}
	b, err := json.Marshal(ReportID("42"))
	if err != nil || string(b) != "42" {
		t.Fatalf("numeric id should marshal as number, got %s (%v)", b, err)
	}
	b, _ = json.Marshal(ReportID("rpt-7"))
	if string(b) != `"rpt-7"` {
		t.Fatalf("string id should stay quoted, got %s", b)
	}
}

func TestReportIDMarshalsOnlyCanonicalNumbers(t *testing.T) {
	cases := []struct {
		id   ReportID
		want string
	}{
		{"42", `42`},
		{"-3", `-3`},
		{"007", `"007"`},
		{"+5", `"+5"`},
		{"abc", `"abc"`},
		{"", `""`},
	}
	for _, tc := range cases {
		b, err := json.Marshal(Report{ID: tc.id})
		if err != nil {
			t.Fatalf("%q: marshal: %v", tc.id, err)
		}
		var back struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(b, &back); err != nil || string(back.ID) != tc.want {
			t.Fatalf("%q: got id %s (%v), want %s", tc.id, back.ID, err, tc.want)
		}
		var r Report
		if err := json.Unmarshal(b, &r); err != nil || r.ID != tc.id {
			t.Fatalf("%q: round trip gave %q (%v)", tc.id, r.ID, err)
		}
	}
}

func TestActionOutcome(t *testing.T) {
	if ActionApprove.Outcome() != StatusApproved || ActionReject.Outcome() != StatusRejected {
		t.Fatalf("unexpected outcomes")
	}
	if Action("maybe").Valid() {
		t.Fatalf("unknown action must be invalid")
	}
}

func TestRejectedErrorText(t *testing.T) {
	err := &RejectedError{}
	if err.Text("fallback") != "fallback" {
		t.Fatalf("empty message should fall back")
	}
	err.Message = "laporan sudah divalidasi"
	if err.Text("fallback") != "laporan sudah divalidasi" {
		t.Fatalf("server message should win")
	}
}
