package harvest

import (
	"context"

	"github.com/samvad-hq/qualclient/pkg/publishers"
	"github.com/samvad-hq/qualclient/pkg/qualtrics"
)

// ResultsPuller exports the merged responses of a survey.
type ResultsPuller interface {
	GetResults(ctx context.Context, surveyID string) (*qualtrics.Results, error)
}

// EventPublisher fans response events out to downstream sinks and reports
// how many of them accepted the event.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deduper remembers which responses were already published.
type Deduper interface {
	SeenResponse(surveyID, responseID string) (bool, error)
	MarkResponse(surveyID, responseID string) error
}
