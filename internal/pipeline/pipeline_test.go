package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/contracts"
	"github.com/contractwatch/contract-fetcher/internal/metrics"
	"github.com/contractwatch/contract-fetcher/internal/notify"
	"github.com/contractwatch/contract-fetcher/internal/publisher"
	"github.com/contractwatch/contract-fetcher/internal/publisher/memory"
	"github.com/contractwatch/contract-fetcher/internal/sam"
	"github.com/contractwatch/contract-fetcher/internal/storage"
	"github.com/contractwatch/contract-fetcher/internal/storage/local"
)

func TestMain(m *testing.M) {
	metrics.Init()
	m.Run()
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, requested contracts.DateRange) ([]sam.RawOpportunity, contracts.DateRange, error) {
	args := m.Called(ctx, requested)
	var raw []sam.RawOpportunity
	if v := args.Get(0); v != nil {
		raw = v.([]sam.RawOpportunity)
	}
	return raw, args.Get(1).(contracts.DateRange), args.Error(2)
}

type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) InsertRecords(ctx context.Context, runID string, records []contracts.Record) error {
	args := m.Called(ctx, runID, records)
	return args.Error(0)
}

type stubNotifier struct {
	configured bool
	reports    []notify.Report
	err        error
}

func (s *stubNotifier) Configured() bool { return s.configured }

func (s *stubNotifier) Send(_ context.Context, report notify.Report) error {
	s.reports = append(s.reports, report)
	return s.err
}

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func testRange() contracts.DateRange {
	return contracts.DateRange{PostedFrom: "08/30/2026", PostedTo: "08/30/2026"}
}

func rawNotice(id, title string) sam.RawOpportunity {
	return sam.RawOpportunity{"noticeId": id, "title": title}
}

func newTestPipeline(t *testing.T, fetcher Fetcher, remote *MockBlobStore, records RecordStore, events publisher.Publisher, notifier Notifier, cfg Config) (*Pipeline, *local.BlobStore) {
	t.Helper()
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	clock := fixedClock{now: time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)}
	var remoteStore storage.BlobStore
	if remote != nil {
		remoteStore = remote
	}
	p, err := New(fetcher, store, remoteStore, records, events, notifier, clock, cfg, zap.NewNop())
	require.NoError(t, err)
	return p, store
}

func TestRunWritesAllSinks(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return([]sam.RawOpportunity{rawNotice("n-1", "Janitorial Services"), rawNotice("n-2", "IT Support")}, testRange(), nil)

	remote := new(MockBlobStore)
	remote.On("PutObject", mock.Anything, "contracts/contracts_20260830.json", "application/json", mock.Anything).
		Return("gs://bucket/contracts/contracts_20260830.json", nil)

	records := new(MockRecordStore)
	records.On("InsertRecords", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("[]contracts.Record")).
		Return(nil)

	events := memory.New()
	notifier := &stubNotifier{configured: true}

	p, store := newTestPipeline(t, fetcher, remote, records, events, notifier, Config{StoragePrefix: "contracts"})

	summary, err := p.Run(context.Background(), contracts.DateRange{})
	require.NoError(t, err)

	require.Equal(t, 2, summary.Fetched)
	require.Equal(t, 2, summary.Inserted)
	require.Equal(t, "gs://bucket/contracts/contracts_20260830.json", summary.BlobURI)
	require.True(t, summary.Notified)
	require.NotEmpty(t, summary.RunID)
	require.Equal(t, "memory-1", summary.EventID)

	data, err := os.ReadFile(store.Path("contracts_20260830.json"))
	require.NoError(t, err)
	var written []contracts.Record
	require.NoError(t, json.Unmarshal(data, &written))
	require.Len(t, written, 2)
	require.Equal(t, "Janitorial Services", written[0].Title)

	msgs := events.Messages()
	require.Len(t, msgs, 1)
	var event publisher.RunEvent
	require.NoError(t, json.Unmarshal(msgs[0], &event))
	require.Equal(t, summary.RunID, event.RunID)
	require.Equal(t, 2, event.Fetched)
	require.Equal(t, "gs://bucket/contracts/contracts_20260830.json", event.FileLocation)

	require.Len(t, notifier.reports, 1)
	require.Equal(t, "gs://bucket/contracts/contracts_20260830.json", notifier.reports[0].FileLocation)

	fetcher.AssertExpectations(t)
	remote.AssertExpectations(t)
	records.AssertExpectations(t)
}

func TestRunZeroResultsSkipsSinks(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return([]sam.RawOpportunity{}, testRange(), nil)

	records := new(MockRecordStore)
	events := memory.New()
	notifier := &stubNotifier{configured: true}

	p, store := newTestPipeline(t, fetcher, nil, records, events, notifier, Config{})

	summary, err := p.Run(context.Background(), contracts.DateRange{})
	require.NoError(t, err)
	require.Zero(t, summary.Fetched)
	require.Empty(t, summary.LocalPath)

	_, statErr := os.Stat(store.Path("contracts_20260830.json"))
	require.True(t, os.IsNotExist(statErr))

	records.AssertNotCalled(t, "InsertRecords", mock.Anything, mock.Anything, mock.Anything)
	require.Len(t, events.Messages(), 1)
	require.Len(t, notifier.reports, 1)
	require.Empty(t, notifier.reports[0].Records)
}

func TestRunContinuesPastFailingSinks(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return([]sam.RawOpportunity{rawNotice("n-1", "Fence Repair")}, testRange(), nil)

	remote := new(MockBlobStore)
	remote.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("bucket unavailable"))

	records := new(MockRecordStore)
	records.On("InsertRecords", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("connection refused"))

	notifier := &stubNotifier{configured: true}

	p, store := newTestPipeline(t, fetcher, remote, records, memory.New(), notifier, Config{})

	summary, err := p.Run(context.Background(), contracts.DateRange{})
	require.NoError(t, err)
	require.Empty(t, summary.BlobURI)
	require.Zero(t, summary.Inserted)
	require.True(t, summary.Notified)

	// The report falls back to the local copy when the upload fails.
	require.Equal(t, "file://"+store.Path("contracts_20260830.json"), notifier.reports[0].FileLocation)
}

func TestRunRemovesLocalFileAfterUpload(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return([]sam.RawOpportunity{rawNotice("n-1", "Snow Removal")}, testRange(), nil)

	remote := new(MockBlobStore)
	remote.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return("gs://bucket/contracts_20260830.json", nil)

	p, store := newTestPipeline(t, fetcher, remote, nil, nil, nil, Config{RemoveAfterUpload: true})

	summary, err := p.Run(context.Background(), contracts.DateRange{})
	require.NoError(t, err)
	require.Equal(t, "gs://bucket/contracts_20260830.json", summary.BlobURI)

	_, statErr := os.Stat(store.Path("contracts_20260830.json"))
	require.True(t, os.IsNotExist(statErr))
}

func TestRunFailsWhenFetchFails(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return(nil, contracts.DateRange{}, errors.New("api unavailable"))

	p, _ := newTestPipeline(t, fetcher, nil, nil, nil, nil, Config{})

	_, err := p.Run(context.Background(), contracts.DateRange{})
	require.ErrorContains(t, err, "fetching notices")
}

func TestRunFailsWhenLocalWriteFails(t *testing.T) {
	fetcher := new(MockFetcher)
	fetcher.On("Fetch", mock.Anything, contracts.DateRange{}).
		Return([]sam.RawOpportunity{rawNotice("n-1", "Paving")}, testRange(), nil)

	clock := fixedClock{now: time.Date(2026, 8, 31, 6, 0, 0, 0, time.UTC)}
	p, err := New(fetcher, failingLocalStore{}, nil, nil, nil, nil, clock, Config{}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.Run(context.Background(), contracts.DateRange{})
	require.ErrorContains(t, err, "writing local output")
}

type failingLocalStore struct{}

func (failingLocalStore) PutObject(_ context.Context, _ string, _ string, _ []byte) (string, error) {
	return "", errors.New("disk full")
}

func (failingLocalStore) Path(name string) string { return name }
