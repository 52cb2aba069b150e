package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

// captureResponse builds the wire capture Parse consumes, the same shape
// Run produces.
func captureResponse(t *testing.T, headers map[string]string, body string) *RawResult {
	t.Helper()
	var b strings.Builder
	b.WriteString("HTTP/1.1 200 OK\r\n")
	for name, value := range headers {
		b.WriteString(name + ": " + value + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(body)
	return &RawResult{Stdout: []byte(b.String())}
}

func findByDescription(findings []finding.Finding, substr string) (finding.Finding, bool) {
	for _, f := range findings {
		if strings.Contains(f.Description, substr) {
			return f, true
		}
	}
	return finding.Finding{}, false
}

func TestHeaderCheckMissingHeaders(t *testing.T) {
	h := NewHeaderCheck()
	target := finding.Target{Identifier: "example.com"}
	raw := captureResponse(t, map[string]string{"Content-Type": "text/html"}, "<html></html>")

	findings, err := h.Parse(target, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	csp, ok := findByDescription(findings, "Content-Security-Policy")
	if !ok {
		t.Fatal("missing CSP not reported")
	}
	if csp.Severity != finding.SeverityMedium || csp.Category != finding.CategoryConfigAudit {
		t.Errorf("CSP finding = %s/%s, want medium/config-audit", csp.Severity, csp.Category)
	}

	hsts, ok := findByDescription(findings, "Strict-Transport-Security")
	if !ok {
		t.Fatal("missing HSTS not reported on https target")
	}
	if hsts.Category != finding.CategoryTransport {
		t.Errorf("HSTS category = %s, want transport", hsts.Category)
	}

	if _, ok := findByDescription(findings, "X-Content-Type-Options"); !ok {
		t.Error("missing X-Content-Type-Options not reported")
	}
}

func TestHeaderCheckHTTPSkipsHSTS(t *testing.T) {
	h := NewHeaderCheck()
	target := finding.Target{Identifier: "http://internal.example.com"}
	raw := captureResponse(t, nil, "")

	findings, err := h.Parse(target, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := findByDescription(findings, "Strict-Transport-Security"); ok {
		t.Error("HSTS should not be required for a plain-http target")
	}
}

func TestHeaderCheckDisclosureAndCookies(t *testing.T) {
	h := NewHeaderCheck()
	target := finding.Target{Identifier: "example.com"}
	raw := captureResponse(t, map[string]string{
		"Server":     "Apache/2.4.41 (Ubuntu)",
		"Set-Cookie": "session=abc123; Path=/",
	}, "")

	findings, err := h.Parse(target, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	server, ok := findByDescription(findings, "Server header discloses")
	if !ok {
		t.Fatal("Server disclosure not reported")
	}
	if server.Severity != finding.SeverityInfo {
		t.Errorf("disclosure severity = %s, want info", server.Severity)
	}

	cookie, ok := findByDescription(findings, `cookie "session"`)
	if !ok {
		t.Fatal("unflagged cookie not reported")
	}
	if cookie.Severity != finding.SeverityHigh || cookie.Category != finding.CategoryAuth {
		t.Errorf("cookie finding = %s/%s, want high/auth", cookie.Severity, cookie.Category)
	}
	if !strings.Contains(cookie.Description, "Secure+HttpOnly") {
		t.Errorf("cookie description should name both flags: %s", cookie.Description)
	}
}

func TestHeaderCheckCSRF(t *testing.T) {
	h := NewHeaderCheck()
	target := finding.Target{Identifier: "example.com"}

	loginForm := `<form method="post" action="/login">
		<input type="text" name="user">
		<input type="password" name="pass">
	</form>`
	raw := captureResponse(t, nil, loginForm)

	findings, err := h.Parse(target, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	csrf, ok := findByDescription(findings, "CSRF token absent")
	if !ok {
		t.Fatal("login form without CSRF token not reported")
	}
	if csrf.Severity != finding.SeverityCritical || csrf.Category != finding.CategoryAuth {
		t.Errorf("CSRF finding = %s/%s, want critical/auth", csrf.Severity, csrf.Category)
	}

	protected := strings.Replace(loginForm, `name="user"`, `name="user"><input type="hidden" name="csrf_token" value="x"`, 1)
	findings, err = h.Parse(target, captureResponse(t, nil, protected))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := findByDescription(findings, "CSRF token absent"); ok {
		t.Error("form with csrf token field should not be flagged")
	}

	searchForm := `<form action="/search"><input type="text" name="q"></form>`
	findings, err = h.Parse(target, captureResponse(t, nil, searchForm))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := findByDescription(findings, "CSRF token absent"); ok {
		t.Error("form without password input should not be flagged")
	}
}

func TestHeaderCheckRunCapturesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Powered-By", "PHP/8.1")
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	h := NewHeaderCheck()
	h.Client = srv.Client()
	target := finding.Target{Identifier: srv.URL}

	raw, err := h.Run(context.Background(), target, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if raw.Duration <= 0 {
		t.Error("duration not recorded")
	}

	findings, err := h.Parse(target, raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if _, ok := findByDescription(findings, "X-Powered-By header discloses"); !ok {
		t.Error("disclosure header from live response not reported")
	}
}

func TestHeaderCheckParseGarbage(t *testing.T) {
	h := NewHeaderCheck()
	if _, err := h.Parse(finding.Target{Identifier: "example.com"}, &RawResult{Stdout: []byte("not an http response")}); err == nil {
		t.Error("expected parse error")
	}
}
