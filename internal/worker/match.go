package worker

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/grabpic/pipeline/internal/domain"
	"github.com/grabpic/pipeline/internal/jobqueue"
	"github.com/grabpic/pipeline/internal/match"
	"github.com/grabpic/pipeline/internal/pageconst"
)

// runMatch implements the match_guest job (spec §4.H "Match job").
func (w *Worker) runMatch(ctx context.Context, job *domain.Job) error {
	if job.QueryID == nil {
		return domain.NewPipelineError(domain.ErrQueryMissing, "match job carries no query_id", nil)
	}
	queryID := *job.QueryID

	query, err := w.store.GetGuestQuery(ctx, queryID)
	if err != nil {
		return fmt.Errorf("loading guest query %s: %w", queryID, err)
	}
	if query == nil {
		return domain.NewPipelineError(domain.ErrQueryMissing, "guest query "+queryID+" not found", nil)
	}

	event, err := w.store.GetEvent(ctx, query.EventID)
	if err != nil {
		return fmt.Errorf("loading event %s: %w", query.EventID, err)
	}
	if event == nil {
		return domain.NewPipelineError(domain.ErrEventMissing, "event "+query.EventID+" not found", nil)
	}

	query.Status = domain.GuestQueryRunning
	query.Message = "Matching selfie with clusters..."
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		return err
	}
	if err := w.queue.MarkProgress(ctx, job.ID, 10, "matching"); err != nil {
		return err
	}

	if canceled, err := w.checkCanceled(ctx, job.ID); err != nil {
		return err
	} else if canceled {
		w.finalizeCancellation(ctx, job)
		return nil
	}

	if query.SelfiePath == "" {
		return w.failMatchQuery(ctx, job, query, "Selfie file missing")
	}
	data, err := os.ReadFile(w.storage.ToAbsolute(query.SelfiePath))
	if err != nil {
		return w.failMatchQuery(ctx, job, query, "Selfie file missing")
	}

	embedding, err := w.selfieEngine.EmbedSingleFace(ctx, data)
	if err != nil {
		return fmt.Errorf("embedding selfie for query %s: %w", queryID, err)
	}
	if embedding == nil {
		return w.completeMatchNoFace(ctx, job, query)
	}

	if err := w.queue.MarkProgress(ctx, job.ID, 45, "matching"); err != nil {
		return err
	}
	if canceled, err := w.checkCanceled(ctx, job.ID); err != nil {
		return err
	} else if canceled {
		w.finalizeCancellation(ctx, job)
		return nil
	}

	pairs, err := w.store.StreamEmbeddingsForEvent(ctx, query.EventID)
	if err != nil {
		return fmt.Errorf("loading embeddings for event %s: %w", query.EventID, err)
	}
	pairs = match.ApproxPreFilter(embedding, pairs, w.cfg.Match.ApproxPreFilterMinFaces, w.cfg.Match.ApproxPreFilterCandidates)

	result := match.Match(embedding, pairs, match.Params{
		ThresholdPercent:      w.cfg.Match.ThresholdPercent,
		TopMargin:             w.cfg.Match.TopMargin,
		AutoRelaxDrop:         w.cfg.Match.AutoRelaxDrop,
		AutoRelaxMinThreshold: w.cfg.Match.AutoRelaxMinThreshold,
		MaxResults:            pageconst.MatchMaxResults,
	})

	if len(result.Matches) == 0 {
		return w.completeMatchNoConfidentMatch(ctx, job, query, result)
	}

	if err := w.queue.MarkProgress(ctx, job.ID, 70, "matching"); err != nil {
		return err
	}
	if canceled, err := w.checkCanceled(ctx, job.ID); err != nil {
		return err
	} else if canceled {
		w.finalizeCancellation(ctx, job)
		return nil
	}

	guestResults := make([]domain.GuestResult, len(result.Matches))
	for i, m := range result.Matches {
		guestResults[i] = domain.GuestResult{
			ID:      domain.NewID(),
			QueryID: queryID,
			PhotoID: m.PhotoID,
			Score:   m.ScoreRatio,
			Rank:    m.Rank,
		}
	}
	if err := w.store.ReplaceGuestResults(ctx, queryID, guestResults); err != nil {
		return fmt.Errorf("storing guest results for query %s: %w", queryID, err)
	}

	best := result.Matches[0].ScoreRatio
	now := time.Now()
	query.Status = domain.GuestQueryCompleted
	query.Confidence = best
	query.Message = fmt.Sprintf("Found %d matching photo(s).", len(result.Matches))
	query.CompletedAt = &now
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		return err
	}

	return w.queue.Complete(ctx, job.ID, "completed", jobqueue.MatchPayload{
		Confidence:            best,
		Photos:                len(result.Matches),
		ThresholdPercent:      result.UsedThresholdPercent,
		AdaptiveThresholdUsed: result.Relaxed,
	}.ToMap())
}

func (w *Worker) failMatchQuery(ctx context.Context, job *domain.Job, query *domain.GuestQuery, message string) error {
	now := time.Now()
	query.Status = domain.GuestQueryFailed
	query.ErrorText = message
	query.CompletedAt = &now
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		return err
	}
	return w.queue.Fail(ctx, job.ID, message)
}

func (w *Worker) completeMatchNoFace(ctx context.Context, job *domain.Job, query *domain.GuestQuery) error {
	now := time.Now()
	query.Status = domain.GuestQueryCompleted
	query.Confidence = 0
	query.Message = "No clear face was found in your selfie."
	query.CompletedAt = &now
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		return err
	}
	return w.queue.Complete(ctx, job.ID, "match_completed_no_face", nil)
}

func (w *Worker) completeMatchNoConfidentMatch(ctx context.Context, job *domain.Job, query *domain.GuestQuery, result match.Result) error {
	now := time.Now()
	query.Status = domain.GuestQueryCompleted
	query.Confidence = 0
	query.Message = "No confident match was found for your selfie."
	query.CompletedAt = &now
	if err := w.store.UpdateGuestQuery(ctx, *query); err != nil {
		return err
	}
	return w.queue.Complete(ctx, job.ID, "match_completed_no_confident_cluster", map[string]any{
		"threshold_percent": result.UsedThresholdPercent,
	})
}
