package publishers

import (
	"time"

	"github.com/samvad-hq/qualclient/internal/domain"
)

// Event represents one survey response published downstream.
type Event struct {
	SurveyID    string          `json:"survey_id"`
	SurveyName  string          `json:"survey_name"`
	Response    domain.Response `json:"response"`
	CollectedAt time.Time       `json:"collected_at"`
}

// NewEvent constructs an Event for the given survey + response.
func NewEvent(surveyID, surveyName string, resp domain.Response) Event {
	return Event{
		SurveyID:    surveyID,
		SurveyName:  surveyName,
		Response:    resp,
		CollectedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes attached to queue/topic messages.
func (e Event) attributes() map[string]string {
	return map[string]string{
		"survey_id":   e.SurveyID,
		"response_id": e.Response.ID,
	}
}
