// Package notify sends the operator-facing run report email via Mailgun.
package notify

import (
	"context"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
)

// DefaultBaseURL is the Mailgun messages API root.
const DefaultBaseURL = "https://api.mailgun.net/v3"

const (
	htmlPreviewLimit = 20
	textPreviewLimit = 10
)

// Config holds Mailgun credentials and the recipient address. Sending is
// only attempted when Enabled is true AND every other field is set; an
// incomplete configuration silently disables the notifier instead of
// failing the run.
type Config struct {
	Enabled       bool
	MailgunDomain string
	MailgunAPIKey string
	To            string
}

// Report is the material the email is rendered from.
type Report struct {
	Records      []contracts.Record
	DateRange    contracts.DateRange
	FileLocation string
}

// EmailNotifier renders and sends the contract report email.
type EmailNotifier struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customizes an EmailNotifier.
type Option func(*EmailNotifier)

// WithBaseURL overrides the Mailgun API root, typically for tests.
func WithBaseURL(baseURL string) Option {
	return func(n *EmailNotifier) {
		if strings.TrimSpace(baseURL) != "" {
			n.baseURL = baseURL
		}
	}
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(n *EmailNotifier) {
		if client != nil {
			n.httpClient = client
		}
	}
}

// NewEmailNotifier builds a notifier from config.
func NewEmailNotifier(cfg Config, logger *zap.Logger, opts ...Option) *EmailNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &EmailNotifier{
		cfg:        cfg,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Configured reports whether sending is enabled and fully configured.
func (n *EmailNotifier) Configured() bool {
	return n.cfg.Enabled &&
		n.cfg.MailgunDomain != "" &&
		n.cfg.MailgunAPIKey != "" &&
		n.cfg.To != ""
}

// Send delivers the report email. When the notifier is not fully configured
// it logs and returns nil so the caller never treats a disabled notifier as
// a failed sink.
func (n *EmailNotifier) Send(ctx context.Context, report Report) error {
	if !n.cfg.Enabled {
		n.logger.Info("Email notifications disabled")
		return nil
	}
	if !n.Configured() {
		n.logger.Warn("Email configuration incomplete; skipping notification")
		return nil
	}

	subject := fmt.Sprintf("Government Contract Report - %d contracts found (%s)",
		len(report.Records), report.DateRange.PostedFrom)

	form := url.Values{}
	form.Set("from", fmt.Sprintf("Contract Fetcher <noreply@%s>", n.cfg.MailgunDomain))
	form.Set("to", n.cfg.To)
	form.Set("subject", subject)
	form.Set("text", renderText(report))
	form.Set("html", renderHTML(report))

	endpoint := fmt.Sprintf("%s/%s/messages", strings.TrimRight(n.baseURL, "/"), n.cfg.MailgunDomain)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build mailgun request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth("api", n.cfg.MailgunAPIKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailgun rejected message: %d - %s", resp.StatusCode, string(body))
	}

	n.logger.Info("Email notification sent", zap.String("to", n.cfg.To))
	return nil
}

func renderHTML(report Report) string {
	var b strings.Builder
	b.WriteString("<html>\n<body>\n")
	b.WriteString("<h2>Contract Fetcher Daily Report</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Date Range:</strong> %s to %s</p>\n",
		html.EscapeString(report.DateRange.PostedFrom), html.EscapeString(report.DateRange.PostedTo))
	fmt.Fprintf(&b, "<p><strong>Total Contracts Found:</strong> %d</p>\n", len(report.Records))
	fmt.Fprintf(&b, "<p><strong>Data Location:</strong> %s</p>\n", html.EscapeString(report.FileLocation))
	b.WriteString("<h3>Contract Summary:</h3>\n")
	b.WriteString(renderHTMLTable(report.Records))
	b.WriteString("<hr>\n<p><small>This is an automated report from the contract fetcher service.</small></p>\n")
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

func renderHTMLTable(records []contracts.Record) string {
	if len(records) == 0 {
		return "<p>No contracts found for this date range.</p>\n"
	}

	var b strings.Builder
	b.WriteString("<table border='1' cellpadding='5' cellspacing='0' style='border-collapse: collapse; width: 100%;'>\n")
	b.WriteString("<tr style='background-color: #f2f2f2;'>" +
		"<th>Title</th><th>Solicitation #</th><th>Posted Date</th><th>Deadline</th>" +
		"<th>Type</th><th>NAICS</th><th>Office Location</th><th>Set Aside</th></tr>\n")

	preview := records
	if len(preview) > htmlPreviewLimit {
		preview = preview[:htmlPreviewLimit]
	}
	for _, r := range preview {
		fmt.Fprintf(&b,
			"<tr><td><a href=\"%s\" target=\"_blank\">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s, %s</td><td>%s</td></tr>\n",
			html.EscapeString(r.UILink),
			html.EscapeString(orNA(r.Title)),
			html.EscapeString(orNA(r.SolicitationNumber)),
			html.EscapeString(orNA(r.PostedDate)),
			html.EscapeString(orNA(r.ResponseDeadline)),
			html.EscapeString(orNA(r.Type)),
			html.EscapeString(orNA(r.NAICSCode)),
			html.EscapeString(orNA(r.OfficeCity)),
			html.EscapeString(orNA(r.OfficeState)),
			html.EscapeString(orNA(r.SetAside)),
		)
	}
	b.WriteString("</table>\n")

	if len(records) > htmlPreviewLimit {
		fmt.Fprintf(&b, "<p><em>... and %d more contracts. Full data available in the JSON file.</em></p>\n",
			len(records)-htmlPreviewLimit)
	}
	return b.String()
}

func renderText(report Report) string {
	var b strings.Builder
	b.WriteString("Contract Fetcher Daily Report\n\n")
	fmt.Fprintf(&b, "Date Range: %s to %s\n", report.DateRange.PostedFrom, report.DateRange.PostedTo)
	fmt.Fprintf(&b, "Total Contracts Found: %d\n", len(report.Records))
	fmt.Fprintf(&b, "Data Location: %s\n\nContract Details:\n", report.FileLocation)

	preview := report.Records
	if len(preview) > textPreviewLimit {
		preview = preview[:textPreviewLimit]
	}
	for i, r := range preview {
		fmt.Fprintf(&b, "\n%d. %s\n   Solicitation: %s\n   Posted: %s\n   Deadline: %s\n   Link: %s\n",
			i+1, orNA(r.Title), orNA(r.SolicitationNumber), orNA(r.PostedDate),
			orNA(r.ResponseDeadline), orNA(r.UILink))
	}
	if len(report.Records) > textPreviewLimit {
		fmt.Fprintf(&b, "\n... and %d more contracts in the full data file.\n",
			len(report.Records)-textPreviewLimit)
	}
	return b.String()
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}
