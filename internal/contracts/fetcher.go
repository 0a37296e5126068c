package contracts

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/contractwatch/contract-fetcher/internal/metrics"
	"github.com/contractwatch/contract-fetcher/internal/sam"
)

// SearchAPI is the subset of the SAM client the fetcher depends on.
type SearchAPI interface {
	Search(ctx context.Context, params sam.SearchParams) ([]sam.RawOpportunity, error)
}

// Clock supplies the current time, injectable for tests.
type Clock interface {
	Now() time.Time
}

// Fetcher issues one search per organization code and merges the results
// into a single deduplicated notice sequence.
type Fetcher struct {
	api      SearchAPI
	clock    Clock
	orgCodes []string
	logger   *zap.Logger
}

// NewFetcher builds a Fetcher over the given ordered organization codes.
func NewFetcher(api SearchAPI, clock Clock, orgCodes []string, logger *zap.Logger) (*Fetcher, error) {
	if api == nil {
		return nil, fmt.Errorf("search API is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if len(orgCodes) == 0 {
		return nil, fmt.Errorf("at least one organization code is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		api:      api,
		clock:    clock,
		orgCodes: orgCodes,
		logger:   logger,
	}, nil
}

// Fetch queries every organization code in order and returns the merged,
// deduplicated notices plus the effective date range. When either requested
// bound is empty, both default to yesterday's calendar date.
//
// A failing code is logged and skipped so one bad source cannot abort the
// whole fetch; Fetch only errors when every code fails.
//
// Deduplication is keyed on the notice identifier: the first occurrence
// wins, so organization-code order decides which copy of a duplicate is
// kept. Notices without an identifier are never collapsed into each other.
func (f *Fetcher) Fetch(ctx context.Context, requested DateRange) ([]sam.RawOpportunity, DateRange, error) {
	effective := f.effectiveRange(requested)

	var (
		merged    []sam.RawOpportunity
		seen      = make(map[string]struct{})
		failed    int
		discarded int
		lastErr   error
	)

	for _, code := range f.orgCodes {
		notices, err := f.api.Search(ctx, sam.SearchParams{
			OrgCode:    code,
			PostedFrom: effective.PostedFrom,
			PostedTo:   effective.PostedTo,
		})
		if err != nil {
			f.logger.Warn("Search failed for organization code; continuing with remaining codes",
				zap.String("org_code", code),
				zap.Error(err),
			)
			failed++
			lastErr = err
			continue
		}
		metrics.AddContractsFetched(code, len(notices))
		f.logger.Info("Search returned notices",
			zap.String("org_code", code),
			zap.Int("count", len(notices)),
		)

		for _, notice := range notices {
			id := notice.NoticeID()
			if id != "" {
				if _, dup := seen[id]; dup {
					discarded++
					continue
				}
				seen[id] = struct{}{}
			}
			merged = append(merged, notice)
		}
	}

	if discarded > 0 {
		metrics.AddDuplicatesDiscarded(discarded)
		f.logger.Info("Discarded duplicate notices across organization codes",
			zap.Int("discarded", discarded),
		)
	}

	if failed == len(f.orgCodes) {
		return nil, effective, fmt.Errorf("all %d organization code searches failed: %w", failed, lastErr)
	}
	return merged, effective, nil
}

// effectiveRange fills in the yesterday default when the caller supplied no
// complete range.
func (f *Fetcher) effectiveRange(requested DateRange) DateRange {
	if requested.PostedFrom != "" && requested.PostedTo != "" {
		return requested
	}
	yesterday := f.clock.Now().AddDate(0, 0, -1).Format(DateLayout)
	return DateRange{PostedFrom: yesterday, PostedTo: yesterday}
}
