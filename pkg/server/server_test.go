package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/user/stigforge/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
	logging.SetOutput(io.Discard)
}

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	router := (&Server{Workers: 2}).Engine()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decode(t *testing.T, resp *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", resp.Body.String(), err)
	}
}

func TestHealthz(t *testing.T) {
	resp := do(t, http.MethodGet, "/healthz", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["ok"] != true || body["ruleset_version"] == "" {
		t.Errorf("unexpected health body %v", body)
	}
}

func TestClassifyEndpoint(t *testing.T) {
	body := `{"records": [
		{"Group ID": "V-1", "STIG ID": "RHEL-08-010000", "Severity": "CAT II",
		 "Check Content": "Verify file /etc/shadow has permissions 0600: # stat -c %a /etc/shadow"},
		{"vuln_id": "V-2", "check_content": "Interview the ISSO and review the System Security Plan for documented exceptions"},
		{"check_content": "no identity"}
	]}`
	resp := do(t, http.MethodPost, "/v1/classify", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Classifications []struct {
			StigID   string `json:"stig_id"`
			Category string `json:"category"`
		} `json:"classifications"`
		Warnings []string `json:"warnings"`
	}
	decode(t, resp, &out)
	if len(out.Classifications) != 2 {
		t.Fatalf("expected 2 classifications, got %d", len(out.Classifications))
	}
	if out.Classifications[0].Category != "fully_automated" || out.Classifications[1].Category != "manual_review" {
		t.Errorf("unexpected categories %+v", out.Classifications)
	}
	if len(out.Warnings) != 1 {
		t.Errorf("expected one warning for the record without identity, got %v", out.Warnings)
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	tests := map[string]struct {
		body string
		code int
	}{
		"not json":        {`{`, http.StatusBadRequest},
		"missing records": {`{}`, http.StatusBadRequest},
		"bad platform":    {`{"records": [{"vuln_id": "V-1"}], "platform": "mainframe"}`, http.StatusBadRequest},
		"no valid record": {`{"records": [{"check_content": "x"}]}`, http.StatusUnprocessableEntity},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodPost, "/v1/classify", tt.body)
			if resp.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, resp.Code, resp.Body.String())
			}
			var out struct {
				Error ErrorBody `json:"error"`
			}
			decode(t, resp, &out)
			if out.Error.Code == "" {
				t.Error("error body has no code")
			}
		})
	}
}

func TestRenderEndpoint(t *testing.T) {
	payload, _ := json.Marshal(map[string]any{
		"record": map[string]any{
			"vuln_id":       "V-254",
			"stig_id":       "WN22-SO-000070",
			"check_content": "Session idle timeout must be organization-defined (10 minutes or less); verify via gpedit.msc",
		},
	})
	resp := do(t, http.MethodPost, "/v1/render", string(payload))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var out struct {
		Classification struct {
			Category string `json:"category"`
			Platform string `json:"platform"`
		} `json:"classification"`
		Artifact struct {
			Language string `json:"language"`
			Source   string `json:"source"`
		} `json:"artifact"`
	}
	decode(t, resp, &out)
	if out.Classification.Category != "automated_with_config" || out.Classification.Platform != "windows" {
		t.Errorf("unexpected classification %+v", out.Classification)
	}
	if out.Artifact.Language != "powershell" || !strings.Contains(out.Artifact.Source, "session_idle_timeout") {
		t.Errorf("unexpected artifact language %s", out.Artifact.Language)
	}
}

func TestRenderStub(t *testing.T) {
	body := `{"record": {"vuln_id": "V-9", "check_content": "Check it."}, "platform": "network", "stub": true}`
	resp := do(t, http.MethodPost, "/v1/render", body)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !bytes.Contains(resp.Body.Bytes(), []byte("STIGFORGE EXTENSION POINT")) {
		t.Error("stub response has no extension point")
	}
}

func TestTemplatesEndpoint(t *testing.T) {
	resp := do(t, http.MethodGet, "/v1/templates", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var out struct {
		Version   string `json:"version"`
		Templates []struct {
			ID string `json:"id"`
		} `json:"templates"`
	}
	decode(t, resp, &out)
	if out.Version == "" || len(out.Templates) == 0 || out.Templates[0].ID == "" {
		t.Errorf("unexpected templates response %+v", out)
	}
}
