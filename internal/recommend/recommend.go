package recommend

import (
	"context"
	"errors"

	"mangashelf/pkg/logging"
	"mangashelf/pkg/models"
)

// DefaultFinalCount is how many recommendations a caller gets.
const DefaultFinalCount = 3

// Recommender turns rated favorites into candidates via a Completer.
type Recommender struct {
	LLM Completer
}

func NewRecommender(llm Completer) *Recommender {
	return &Recommender{LLM: llm}
}

// GetRecommendations sends one candidate prompt. Malformed output fails with
// ErrNoJSONFound or *ParseError; nothing is repaired here.
func (r *Recommender) GetRecommendations(ctx context.Context, favs []RatedFavorite, opts PromptOptions) ([]models.Candidate, error) {
	content, err := r.LLM.Complete(ctx, CandidatePrompt(favs, opts))
	if err != nil {
		return nil, err
	}
	return ParseCandidates(content)
}

// Repair asks the model once to fix output that failed to parse.
func (r *Recommender) Repair(ctx context.Context, broken string) ([]models.Candidate, error) {
	content, err := r.LLM.Complete(ctx, RepairPrompt(broken))
	if err != nil {
		return nil, err
	}
	return ParseCandidates(content)
}

// SelectBest asks the model to narrow candidates down to finalCount. Input of
// finalCount or fewer is returned unchanged. If the model's answer cannot be
// used the first finalCount candidates are returned instead.
func (r *Recommender) SelectBest(ctx context.Context, favs []RatedFavorite, candidates []models.Candidate, finalCount int) ([]models.Candidate, error) {
	if finalCount <= 0 {
		finalCount = DefaultFinalCount
	}
	if len(candidates) <= finalCount {
		return candidates, nil
	}
	fallback := append([]models.Candidate(nil), candidates[:finalCount]...)

	content, err := r.LLM.Complete(ctx, SelectionPrompt(favs, candidates, finalCount))
	if err == nil {
		var picked []models.Candidate
		picked, err = ParseCandidates(content)
		if err == nil && len(picked) > 0 {
			return mergeSelection(candidates, picked, finalCount), nil
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}
	logging.Warn().Err(err).Int("candidates", len(candidates)).Msg("selection unusable, keeping top candidates")
	return fallback, nil
}

// mergeSelection keeps the stored data of each picked candidate and only takes
// the new reason. Picks that match nothing are kept as returned, unverified.
func mergeSelection(pool, picked []models.Candidate, limit int) []models.Candidate {
	byTitle := make(map[string]models.Candidate, len(pool))
	for _, c := range pool {
		byTitle[titleKey(c.Title)] = c
	}
	out := make([]models.Candidate, 0, limit)
	seen := make(map[string]bool, len(picked))
	for _, p := range picked {
		key := titleKey(p.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		if orig, ok := byTitle[key]; ok {
			if p.Reason != "" {
				orig.Reason = p.Reason
			}
			p = orig
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}
