package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
)

func testRecords(n int) []contracts.Record {
	records := make([]contracts.Record, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, contracts.Record{
			NoticeID: fmt.Sprintf("n-%d", i),
			Title:    fmt.Sprintf("Contract %d", i),
			UILink:   fmt.Sprintf("https://sam.gov/opp/n-%d/view", i),
		})
	}
	return records
}

func TestSendPostsFormToMailgun(t *testing.T) {
	t.Parallel()

	var gotForm map[string]string
	var gotUser, gotPass string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/mg.example.com/messages", r.URL.Path)
		gotUser, gotPass, _ = r.BasicAuth()
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"from":    r.PostForm.Get("from"),
			"to":      r.PostForm.Get("to"),
			"subject": r.PostForm.Get("subject"),
			"text":    r.PostForm.Get("text"),
			"html":    r.PostForm.Get("html"),
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewEmailNotifier(Config{
		Enabled:       true,
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "mg-key",
		To:            "ops@example.com",
	}, zap.NewNop(), WithBaseURL(server.URL))

	report := Report{
		Records:      testRecords(3),
		DateRange:    contracts.DateRange{PostedFrom: "11/05/2025", PostedTo: "11/05/2025"},
		FileLocation: "gs://bucket/contracts/contracts_20251105.json",
	}
	require.NoError(t, notifier.Send(context.Background(), report))

	require.Equal(t, "api", gotUser)
	require.Equal(t, "mg-key", gotPass)
	require.Equal(t, "Contract Fetcher <noreply@mg.example.com>", gotForm["from"])
	require.Equal(t, "ops@example.com", gotForm["to"])
	require.Contains(t, gotForm["subject"], "3 contracts found")
	require.Contains(t, gotForm["subject"], "11/05/2025")
	require.Contains(t, gotForm["text"], "Total Contracts Found: 3")
	require.Contains(t, gotForm["html"], "gs://bucket/contracts/contracts_20251105.json")
	require.Contains(t, gotForm["html"], "Contract 0")
}

func TestSendBoundsPreviewLists(t *testing.T) {
	t.Parallel()

	var gotText, gotHTML string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotText = r.PostForm.Get("text")
		gotHTML = r.PostForm.Get("html")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewEmailNotifier(Config{
		Enabled:       true,
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "mg-key",
		To:            "ops@example.com",
	}, zap.NewNop(), WithBaseURL(server.URL))

	report := Report{
		Records:   testRecords(25),
		DateRange: contracts.DateRange{PostedFrom: "11/05/2025", PostedTo: "11/05/2025"},
	}
	require.NoError(t, notifier.Send(context.Background(), report))

	require.Contains(t, gotHTML, "Contract 19")
	require.NotContains(t, gotHTML, "Contract 20")
	require.Contains(t, gotHTML, "and 5 more contracts")

	require.Contains(t, gotText, "Contract 9")
	require.NotContains(t, gotText, "Contract 10\n")
	require.Contains(t, gotText, "and 15 more contracts")
}

func TestSendZeroCountReport(t *testing.T) {
	t.Parallel()

	var gotHTML string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotHTML = r.PostForm.Get("html")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewEmailNotifier(Config{
		Enabled:       true,
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "mg-key",
		To:            "ops@example.com",
	}, zap.NewNop(), WithBaseURL(server.URL))

	report := Report{
		DateRange:    contracts.DateRange{PostedFrom: "11/05/2025", PostedTo: "11/05/2025"},
		FileLocation: "No data - no contracts found",
	}
	require.NoError(t, notifier.Send(context.Background(), report))
	require.Contains(t, gotHTML, "No contracts found for this date range.")
}

func TestSendSkipsWhenDisabledOrIncomplete(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cases := []Config{
		{Enabled: false, MailgunDomain: "mg.example.com", MailgunAPIKey: "key", To: "ops@example.com"},
		{Enabled: true, MailgunAPIKey: "key", To: "ops@example.com"},
		{Enabled: true, MailgunDomain: "mg.example.com", To: "ops@example.com"},
		{Enabled: true, MailgunDomain: "mg.example.com", MailgunAPIKey: "key"},
	}
	for _, cfg := range cases {
		notifier := NewEmailNotifier(cfg, zap.NewNop(), WithBaseURL(server.URL))
		require.False(t, notifier.Configured())
		require.NoError(t, notifier.Send(context.Background(), Report{}))
	}
	require.Equal(t, int32(0), calls.Load(), "no request may be sent while unconfigured")
}

func TestSendSurfacesMailgunRejection(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("invalid key"))
	}))
	defer server.Close()

	notifier := NewEmailNotifier(Config{
		Enabled:       true,
		MailgunDomain: "mg.example.com",
		MailgunAPIKey: "bad",
		To:            "ops@example.com",
	}, zap.NewNop(), WithBaseURL(server.URL))

	err := notifier.Send(context.Background(), Report{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "401")
	require.True(t, strings.Contains(err.Error(), "invalid key"))
}
