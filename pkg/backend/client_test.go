package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewChatClient_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "://bad", "/relative"} {
		if _, err := NewChatClient(Config{BaseURL: raw}); err == nil {
			t.Errorf("NewChatClient(%q): expected error", raw)
		}
	}
}

func TestChatClient_Send(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type: got %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`[{"text":"hi"},{"buttons":[{"title":"Yes","payload":"/affirm"}]}]`))
	}))
	defer srv.Close()

	c, err := NewChatClient(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	envs, err := c.Send(context.Background(), "user_1", "/greet")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(envs) != 2 {
		t.Fatalf("len(envelopes) = %d, want 2", len(envs))
	}
	if got.Sender != "user_1" || got.Message != "/greet" {
		t.Errorf("request body: got %+v", got)
	}
}

func TestChatClient_SendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rasa down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := NewChatClient(Config{BaseURL: srv.URL})
	_, err := c.Send(context.Background(), "u", "hello")
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 status error, got %v", err)
	}
}

func TestChatClient_UploadPrescription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/appointments/upload_prescription" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if pid := r.FormValue("patient_id"); pid != "PID-9" {
			t.Errorf("patient_id: got %q", pid)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if hdr.Filename != "rx.png" || string(data) != "png-bytes" {
			t.Errorf("file: got %q %q", hdr.Filename, data)
		}
		w.Write([]byte(`{"message":"Uploaded"}`))
	}))
	defer srv.Close()

	c, _ := NewChatClient(Config{BaseURL: srv.URL})
	err := c.UploadPrescription(context.Background(), "PID-9", "rx.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
}

func TestDashboardPath(t *testing.T) {
	cases := []struct {
		role, scope, want string
	}{
		{"doctor", "12", "/appointments/dashboard/doctor/12"},
		{"doctor", "a b", "/appointments/dashboard/doctor/a%20b"},
		{"lab", "ignored", "/appointments/dashboard/lab"},
		{"pharmacy", "", "/appointments/dashboard/pharmacy"},
	}
	for _, tc := range cases {
		got, err := DashboardPath(tc.role, tc.scope)
		if err != nil {
			t.Errorf("DashboardPath(%q, %q): %v", tc.role, tc.scope, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DashboardPath(%q, %q) = %q, want %q", tc.role, tc.scope, got, tc.want)
		}
	}
	if _, err := DashboardPath("janitor", ""); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestBoardClient_DashboardAndUpdate(t *testing.T) {
	var putPath, putBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			w.Write([]byte(`{"role":"Lab Console","records":[{"id":7,"title":"CBC","status":"Pending"},{"id":"x-1","title":"Lipid","status":"Completed"}]}`))
		case http.MethodPut:
			putPath = r.URL.Path
			b, _ := io.ReadAll(r.Body)
			putBody = string(b)
		}
	}))
	defer srv.Close()

	c, _ := NewBoardClient(Config{BaseURL: srv.URL})
	resp, err := c.Dashboard(context.Background(), "lab", "")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if resp.Role != "Lab Console" || len(resp.Records) != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Records[0].ID != "7" || resp.Records[1].ID != "x-1" {
		t.Errorf("ids: got %q and %q", resp.Records[0].ID, resp.Records[1].ID)
	}

	if err := c.UpdateStatus(context.Background(), "lab", "7", "Completed"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if putPath != "/appointments/update/lab/7" {
		t.Errorf("put path: got %q", putPath)
	}
	if putBody != `{"status":"Completed"}` {
		t.Errorf("put body: got %q", putBody)
	}
}

func TestBoardClient_NullRecordsBecomeEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"role":"Pharmacy","records":null}`))
	}))
	defer srv.Close()

	c, _ := NewBoardClient(Config{BaseURL: srv.URL})
	resp, err := c.Dashboard(context.Background(), "pharmacy", "")
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if resp.Records == nil || len(resp.Records) != 0 {
		t.Errorf("expected empty non-nil records, got %#v", resp.Records)
	}
}

func TestRecordID_JSON(t *testing.T) {
	var r Record
	if err := json.Unmarshal([]byte(`{"id": 42}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ := json.Marshal(r.ID)
	if string(out) != "42" {
		t.Errorf("numeric id marshal: got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"id": "rx-3"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, _ = json.Marshal(r.ID)
	if string(out) != `"rx-3"` {
		t.Errorf("string id marshal: got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"id": true}`), &r); err == nil {
		t.Error("expected error for boolean id")
	}
}
