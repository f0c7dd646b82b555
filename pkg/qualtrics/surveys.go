package qualtrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samvad-hq/qualclient/internal/domain"
	"github.com/samvad-hq/qualclient/pkg/table"
)

// SurveyMetaColumns are the columns of the table returned by PullSurveyMeta.
var SurveyMetaColumns = []string{"SurveyID", "Survey_Name", "IsActive", "Created", "LastModified"}

type surveyListEnvelope struct {
	Result struct {
		Elements []domain.SurveyMeta `json:"elements"`
		NextPage *string             `json:"nextPage"`
	} `json:"result"`
}

// ListSurveys returns every survey visible to the token, following nextPage links.
func (c *Client) ListSurveys(ctx context.Context) ([]domain.SurveyMeta, error) {
	var out []domain.SurveyMeta
	seen := make(map[string]struct{})

	next := c.endpoint(surveysPath)
	for next != "" {
		if _, dup := seen[next]; dup {
			return nil, &ParseError{Op: "list surveys", Err: fmt.Errorf("pagination loop at %s", next)}
		}
		seen[next] = struct{}{}

		var env surveyListEnvelope
		if err := c.getJSON(ctx, next, &env); err != nil {
			return nil, fmt.Errorf("list surveys: %w", err)
		}
		out = append(out, env.Result.Elements...)

		next = ""
		if env.Result.NextPage != nil {
			next = strings.TrimSpace(*env.Result.NextPage)
		}
	}

	c.log.DebugObj("surveys listed", "survey_list", map[string]any{
		"count": len(out),
		"pages": len(seen),
	})
	return out, nil
}

// PullSurveyMeta returns one row per survey with id, name, active flag and timestamps.
func (c *Client) PullSurveyMeta(ctx context.Context) (*table.Table, error) {
	surveys, err := c.ListSurveys(ctx)
	if err != nil {
		return nil, err
	}

	t := table.New(SurveyMetaColumns...)
	for _, s := range surveys {
		if err := t.Append(s.ID, s.Name, strconv.FormatBool(s.IsActive), s.CreationDate, s.LastModified); err != nil {
			return nil, err
		}
	}
	return t, nil
}
