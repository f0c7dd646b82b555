package harvest

import (
	"context"
	"errors"
	"fmt"

	"github.com/samvad-hq/qualclient/internal/domain"
	"github.com/samvad-hq/qualclient/internal/logger"
	"github.com/samvad-hq/qualclient/pkg/publishers"
	"github.com/samvad-hq/qualclient/pkg/surveys"
)

// Service coordinates response harvesting across the configured surveys.
type Service struct {
	puller    ResultsPuller
	publisher EventPublisher
	dedupe    Deduper
	log       logger.Logger
}

// Stats summarises one survey pass.
type Stats struct {
	Fetched   int
	Fresh     int
	Published int
	Failed    int
}

// NewService wires a harvest service. A nil deduper publishes every response on every pass.
func NewService(puller ResultsPuller, pub EventPublisher, log logger.Logger, dedupe Deduper) *Service {
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Service{
		puller:    puller,
		publisher: pub,
		dedupe:    dedupe,
		log:       log,
	}
}

// Run executes a harvest pass for every survey. Failures are logged per
// survey and returned joined.
func (s *Service) Run(ctx context.Context, list []surveys.Survey) error {
	if s == nil || s.puller == nil {
		return fmt.Errorf("harvest service is not initialized")
	}
	if len(list) == 0 {
		return fmt.Errorf("no surveys configured for harvesting")
	}

	if errs := s.runAll(ctx, list); len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (s *Service) runAll(ctx context.Context, list []surveys.Survey) []error {
	errs := make([]error, 0, len(list))
	for _, sv := range list {
		if ctx.Err() != nil {
			s.log.WarnObj("harvest pass interrupted", "harvest_interrupted", map[string]any{
				"survey_id": sv.ID,
				"reason":    ctx.Err().Error(),
			})
			break
		}
		if _, err := s.RunSurvey(ctx, sv); err != nil {
			errs = append(errs, err)
			s.log.ErrorObj("survey harvest failed", "survey_error", map[string]any{
				"survey_id": sv.ID,
				"error":     err.Error(),
			})
		}
	}
	return errs
}

// RunSurvey exports one survey, publishes responses not seen before and marks
// each one once at least one sink accepted it.
func (s *Service) RunSurvey(ctx context.Context, sv surveys.Survey) (Stats, error) {
	var st Stats

	res, err := s.puller.GetResults(ctx, sv.ID)
	if err != nil {
		return st, fmt.Errorf("export survey %s: %w", sv.ID, err)
	}

	responses := res.Responses()
	st.Fetched = len(responses)
	fresh := s.filterNew(sv, responses)
	st.Fresh = len(fresh)

	var errs []error
	for _, resp := range fresh {
		if s.publisher == nil {
			break
		}
		n, err := s.publisher.Publish(ctx, publishers.NewEvent(sv.ID, sv.Name, resp))
		if err != nil {
			errs = append(errs, fmt.Errorf("publish response %s: %w", resp.ID, err))
		}
		if n == 0 {
			st.Failed++
			continue
		}
		st.Published++
		if s.dedupe == nil {
			continue
		}
		if err := s.dedupe.MarkResponse(sv.ID, resp.ID); err != nil {
			s.log.WarnObj("mark response failed", "dedupe_error", map[string]any{
				"survey_id":   sv.ID,
				"response_id": resp.ID,
				"error":       err.Error(),
			})
		}
	}

	s.log.InfoObj("survey harvest completed", "survey_result", map[string]any{
		"survey_id":   sv.ID,
		"survey_name": sv.Name,
		"fetched":     st.Fetched,
		"fresh":       st.Fresh,
		"published":   st.Published,
		"failed":      st.Failed,
	})

	if len(errs) > 0 {
		return st, fmt.Errorf("survey %s: %w", sv.ID, errors.Join(errs...))
	}
	return st, nil
}

// filterNew drops responses already marked. Lookup errors keep the response
// so it is published rather than lost.
func (s *Service) filterNew(sv surveys.Survey, responses []domain.Response) []domain.Response {
	if s.dedupe == nil {
		return responses
	}
	out := make([]domain.Response, 0, len(responses))
	for _, r := range responses {
		if r.ID == "" {
			continue
		}
		seen, err := s.dedupe.SeenResponse(sv.ID, r.ID)
		if err != nil {
			s.log.WarnObj("dedupe lookup failed", "dedupe_error", map[string]any{
				"survey_id":   sv.ID,
				"response_id": r.ID,
				"error":       err.Error(),
			})
		}
		if seen {
			continue
		}
		out = append(out, r)
	}
	return out
}
