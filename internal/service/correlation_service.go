package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/config"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// CorrelationService looks up wash-sale-safe substitute tickers from the
// precomputed pairwise correlation index.
type CorrelationService struct {
	correlationRepo *repository.CorrelationRepository
	harvestCfg      config.HarvestConfig
}

// NewCorrelationService creates a new CorrelationService with the provided repository dependency.
func NewCorrelationService(
	correlationRepo *repository.CorrelationRepository,
	harvestCfg config.HarvestConfig,
) *CorrelationService {
	return &CorrelationService{
		correlationRepo: correlationRepo,
		harvestCfg:      harvestCfg,
	}
}

// substituteCandidate pairs a counterpart ticker with the correlation entry it
// came from, for ranking.
type substituteCandidate struct {
	ticker string
	entry  model.CorrelationEntry
}

// SubstitutesFor returns up to MaxSubstitutes tickers correlated with the
// given one, ranked by correlation coefficient, then beta similarity, then
// same-sector preference. The result never contains the ticker itself, any
// ticker in the exclude set (recent buys inside the wash-sale window), or a
// near-identical candidate (correlation at or above the near-identity
// threshold with matching sector and industry).
func (s *CorrelationService) SubstitutesFor(ticker string, exclude map[string]bool) ([]string, error) {
	entries, err := s.correlationRepo.GetEntriesForTicker(ticker)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorrelationDataUnavailable, err)
	}

	candidates := []substituteCandidate{}
	for _, e := range entries {
		other, ok := e.Other(ticker)
		if !ok || other == ticker {
			continue
		}
		if exclude[other] {
			continue
		}
		if s.nearIdentical(e) {
			continue
		}
		candidates = append(candidates, substituteCandidate{ticker: other, entry: e})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i].entry, candidates[j].entry
		if cmp := a.Correlation.Cmp(b.Correlation); cmp != 0 {
			return cmp > 0
		}
		if cmp := a.BetaSimilarity.Cmp(b.BetaSimilarity); cmp != 0 {
			return cmp > 0
		}
		return sameSector(a) && !sameSector(b)
	})

	limit := s.harvestCfg.MaxSubstitutes
	if limit > len(candidates) {
		limit = len(candidates)
	}

	substitutes := make([]string, 0, limit)
	for _, c := range candidates[:limit] {
		substitutes = append(substitutes, c.ticker)
	}

	return substitutes, nil
}

// ImportEntry stores one pairwise correlation fact. This is the offline
// loader's write path; the harvest engine only reads.
func (s *CorrelationService) ImportEntry(ctx context.Context, e *model.CorrelationEntry) error {
	return s.correlationRepo.UpsertEntry(ctx, e)
}

// nearIdentical flags a pair as substantially identical for wash-sale
// purposes: correlation at or above the configured threshold combined with a
// shared sector and industry classification.
func (s *CorrelationService) nearIdentical(e model.CorrelationEntry) bool {
	return e.Correlation.GreaterThanOrEqual(s.harvestCfg.NearIdentityThreshold) &&
		e.Sector != "" && e.Industry != ""
}

// sameSector reports whether the pair shares a sector classification.
func sameSector(e model.CorrelationEntry) bool {
	return e.Sector != ""
}
