package adapter

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

const headerCheckTableVersion = "headercheck/1"

// headerCheckBodyLimit caps how much of the response body is captured for
// the CSRF heuristic.
const headerCheckBodyLimit = 64 * 1024

// HeaderCheck is the built-in adapter: it needs no external binary. It
// fetches the target over HTTP and audits the response for the security
// headers, cookie flags and CSRF protections a hardened deployment carries.
type HeaderCheck struct {
	// Client overrides the HTTP client, used by tests. When nil a client
	// with the invocation timeout is built per run.
	Client *http.Client
}

// NewHeaderCheck builds the built-in response-header auditor.
func NewHeaderCheck() *HeaderCheck {
	return &HeaderCheck{}
}

func (h *HeaderCheck) Name() string         { return "headercheck" }
func (h *HeaderCheck) Tool() string         { return "" }
func (h *HeaderCheck) TableVersion() string { return headerCheckTableVersion }

// Run fetches the target and captures the wire response (status line,
// headers, bounded body) into the raw result so Parse stays a pure
// function of the captured bytes.
func (h *HeaderCheck) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: false},
			},
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(runCtx, http.MethodGet, target.URL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s after %s", ErrTimeout, target.Identifier, timeout)
		}
		return nil, fmt.Errorf("fetch %s: %w", target.Identifier, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, headerCheckBodyLimit))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", target.Identifier, err)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %s\r\n", resp.Proto, resp.Status)
	// The captured body is truncated, so length framing headers would
	// make the capture unreadable.
	header := resp.Header.Clone()
	header.Del("Content-Length")
	header.Del("Transfer-Encoding")
	if err := header.Write(&buf); err != nil {
		return nil, fmt.Errorf("capture headers: %w", err)
	}
	buf.WriteString("\r\n")
	buf.Write(body)

	return &RawResult{
		Stdout:   buf.Bytes(),
		Duration: time.Since(start),
	}, nil
}

type headerSpec struct {
	name        string
	severity    finding.Severity
	category    finding.Category
	remediation string
}

// requiredResponseHeaders is the headercheck severity table. httpsOnly
// entries are skipped for plain-http targets.
var requiredResponseHeaders = []struct {
	headerSpec
	httpsOnly bool
}{
	{headerSpec{"Content-Security-Policy", finding.SeverityMedium, finding.CategoryConfigAudit,
		"Define a Content-Security-Policy appropriate for the application."}, false},
	{headerSpec{"Strict-Transport-Security", finding.SeverityMedium, finding.CategoryTransport,
		"Add 'Strict-Transport-Security: max-age=31536000; includeSubDomains'."}, true},
	{headerSpec{"X-Content-Type-Options", finding.SeverityLow, finding.CategoryConfigAudit,
		"Add 'X-Content-Type-Options: nosniff'."}, false},
	{headerSpec{"X-Frame-Options", finding.SeverityLow, finding.CategoryConfigAudit,
		"Add 'X-Frame-Options: DENY' or 'SAMEORIGIN'."}, false},
	{headerSpec{"Referrer-Policy", finding.SeverityInfo, finding.CategoryConfigAudit,
		"Add 'Referrer-Policy: strict-origin-when-cross-origin'."}, false},
}

var disclosureHeaders = []string{"Server", "X-Powered-By", "X-AspNet-Version"}

var csrfTokenMarkers = []string{"csrf", "_token", "authenticity_token", "__requestverificationtoken"}

func (h *HeaderCheck) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(raw.Stdout)), nil)
	if err != nil {
		return nil, fmt.Errorf("parse captured response: %w", err)
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read captured body: %w", err)
	}

	https := strings.HasPrefix(target.URL(), "https://")
	var findings []finding.Finding

	for _, spec := range requiredResponseHeaders {
		if spec.httpsOnly && !https {
			continue
		}
		if resp.Header.Get(spec.name) != "" {
			continue
		}
		findings = append(findings, finding.Finding{
			Target:      target.Identifier,
			Adapter:     h.Name(),
			Severity:    spec.severity,
			Category:    spec.category,
			Description: fmt.Sprintf("missing %s header", spec.name),
			Remediation: spec.remediation,
		})
	}

	for _, name := range disclosureHeaders {
		if value := resp.Header.Get(name); value != "" {
			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     h.Name(),
				Severity:    finding.SeverityInfo,
				Category:    finding.CategoryConfigAudit,
				Description: fmt.Sprintf("%s header discloses implementation detail (%s)", name, value),
				Remediation: fmt.Sprintf("Remove or genericize the %s header.", name),
			})
		}
	}

	for _, cookie := range resp.Cookies() {
		var missing []string
		if !cookie.Secure {
			missing = append(missing, "Secure")
		}
		if !cookie.HttpOnly {
			missing = append(missing, "HttpOnly")
		}
		if len(missing) == 0 {
			continue
		}
		findings = append(findings, finding.Finding{
			Target:      target.Identifier,
			Adapter:     h.Name(),
			Severity:    finding.SeverityHigh,
			Category:    finding.CategoryAuth,
			Description: fmt.Sprintf("cookie %q missing %s flag(s)", cookie.Name, strings.Join(missing, "+")),
			Remediation: "Set Secure and HttpOnly on session cookies.",
		})
	}

	if f, ok := h.checkLoginForm(target, body); ok {
		findings = append(findings, f)
	}

	return findings, nil
}

// checkLoginForm flags login forms that carry no recognizable CSRF token
// field. The heuristic only fires when a password input is present, so
// plain search forms do not trigger it.
func (h *HeaderCheck) checkLoginForm(target finding.Target, body []byte) (finding.Finding, bool) {
	lower := strings.ToLower(string(body))
	if !strings.Contains(lower, "<form") || !strings.Contains(lower, "type=\"password\"") {
		return finding.Finding{}, false
	}
	for _, marker := range csrfTokenMarkers {
		if strings.Contains(lower, marker) {
			return finding.Finding{}, false
		}
	}
	return finding.Finding{
		Target:      target.Identifier,
		Adapter:     h.Name(),
		Severity:    finding.SeverityCritical,
		Category:    finding.CategoryAuth,
		Description: "CSRF token absent on login form",
		Remediation: "Issue a per-session CSRF token and validate it on every state-changing request.",
	}, true
}
