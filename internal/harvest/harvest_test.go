package harvest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/samvad-hq/qualclient/internal/storage"
	"github.com/samvad-hq/qualclient/pkg/publishers"
	"github.com/samvad-hq/qualclient/pkg/qualtrics"
	"github.com/samvad-hq/qualclient/pkg/surveys"
	"github.com/samvad-hq/qualclient/pkg/table"
)

// fakePuller returns preset results per survey id.
type fakePuller struct {
	results map[string]*qualtrics.Results
	err     error
	calls   []string
}

func (f *fakePuller) GetResults(_ context.Context, surveyID string) (*qualtrics.Results, error) {
	f.calls = append(f.calls, surveyID)
	if f.err != nil {
		return nil, f.err
	}
	res, ok := f.results[surveyID]
	if !ok {
		return nil, qualtrics.ErrNotFound
	}
	return res, nil
}

// fakePublisher records published events and can reject one response.
type fakePublisher struct {
	mu      sync.Mutex
	events  []publishers.Event
	errOnID string
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if evt.Response.ID == f.errOnID {
		return 0, errors.New("boom")
	}
	return 1, nil
}

// fakeDeduper tracks seen survey/response pairs.
type fakeDeduper struct {
	mu      sync.Mutex
	seen    map[string]bool
	failID  string
	failErr error
}

func (f *fakeDeduper) SeenResponse(surveyID, responseID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if responseID == f.failID && f.failErr != nil {
		return false, f.failErr
	}
	return f.seen[surveyID+"/"+responseID], nil
}

func (f *fakeDeduper) MarkResponse(surveyID, responseID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[surveyID+"/"+responseID] = true
	return nil
}

func results(t *testing.T, surveyID string, ids ...string) *qualtrics.Results {
	t.Helper()
	tbl := table.New(qualtrics.ResponseIDColumn, "Q1", "Q1"+qualtrics.CodeSuffix)
	for _, id := range ids {
		if err := tbl.Append(id, "Yes", "1"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return &qualtrics.Results{
		SurveyID: surveyID,
		Columns:  []qualtrics.ColumnMeta{{Name: "Q1", ImportID: "QID1"}},
		Table:    tbl,
	}
}

func TestRunSurveyPublishesFreshResponsesOnly(t *testing.T) {
	puller := &fakePuller{results: map[string]*qualtrics.Results{"SV_1": results(t, "SV_1", "R_1", "R_2")}}
	deduper := &fakeDeduper{seen: map[string]bool{"SV_1/R_1": true}}
	pub := &fakePublisher{}

	svc := NewService(puller, pub, nil, deduper)
	st, err := svc.RunSurvey(context.Background(), surveys.Survey{ID: "SV_1", Name: "Pulse"})
	if err != nil {
		t.Fatalf("RunSurvey: %v", err)
	}
	if st.Fetched != 2 || st.Fresh != 1 || st.Published != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(pub.events))
	}
	evt := pub.events[0]
	if evt.Response.ID != "R_2" || evt.SurveyName != "Pulse" || evt.Response.Answers["Q1_Code"] != "1" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if !deduper.seen["SV_1/R_2"] {
		t.Fatalf("MarkResponse not called for new response")
	}
}

func TestSecondPassSkipsMarkedResponses(t *testing.T) {
	store, err := storage.NewStore("bbolt", filepath.Join(t.TempDir(), "responses.db"), storage.Options{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer store.Close()

	puller := &fakePuller{results: map[string]*qualtrics.Results{"SV_1": results(t, "SV_1", "R_1", "R_2")}}
	pub := &fakePublisher{}
	svc := NewService(puller, pub, nil, store)
	sv := surveys.Survey{ID: "SV_1"}

	if _, err := svc.RunSurvey(context.Background(), sv); err != nil {
		t.Fatalf("first pass: %v", err)
	}
	st, err := svc.RunSurvey(context.Background(), sv)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if st.Fetched != 2 || st.Fresh != 0 {
		t.Fatalf("expected exported responses to stay marked, got %+v", st)
	}
	if len(pub.events) != 2 {
		t.Fatalf("expected each response published once, got %d events", len(pub.events))
	}
}

func TestRunSurveyDoesNotMarkRejectedResponses(t *testing.T) {
	puller := &fakePuller{results: map[string]*qualtrics.Results{"SV_1": results(t, "SV_1", "bad", "good")}}
	deduper := &fakeDeduper{}
	pub := &fakePublisher{errOnID: "bad"}

	st, err := NewService(puller, pub, nil, deduper).RunSurvey(context.Background(), surveys.Survey{ID: "SV_1"})
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("expected error mentioning bad response, got %v", err)
	}
	if st.Published != 1 || st.Failed != 1 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if deduper.seen["SV_1/bad"] {
		t.Fatalf("rejected response must not be marked")
	}
	if !deduper.seen["SV_1/good"] {
		t.Fatalf("accepted response must be marked")
	}
}

func TestRunAggregatesSurveyErrors(t *testing.T) {
	puller := &fakePuller{results: map[string]*qualtrics.Results{"SV_1": results(t, "SV_1", "R_1")}}
	pub := &fakePublisher{}

	err := NewService(puller, pub, nil, nil).Run(context.Background(), []surveys.Survey{{ID: "SV_missing"}, {ID: "SV_1"}})
	if !errors.Is(err, qualtrics.ErrNotFound) {
		t.Fatalf("expected ErrNotFound in joined error, got %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("expected remaining survey to be harvested, got %d events", len(pub.events))
	}
}

func TestRunAllStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	puller := &fakePuller{}
	svc := NewService(puller, &fakePublisher{}, nil, nil)
	if errs := svc.runAll(ctx, []surveys.Survey{{ID: "SV_1"}}); len(errs) != 0 {
		t.Fatalf("expected no errors on cancelled context, got %v", errs)
	}
	if len(puller.calls) != 0 {
		t.Fatalf("expected no exports after cancel, got %v", puller.calls)
	}
}

func TestRunRejectsEmptySurveyList(t *testing.T) {
	svc := NewService(&fakePuller{}, nil, nil, nil)
	if err := svc.Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error when survey list empty")
	}
}

func TestFilterNewHandlesDeduperErrors(t *testing.T) {
	deduper := &fakeDeduper{
		seen:    map[string]bool{"SV/skip": true},
		failID:  "error",
		failErr: errors.New("lookup failed"),
	}
	svc := NewService(&fakePuller{}, nil, nil, deduper)
	res := results(t, "SV", "keep", "skip", "error")

	filtered := svc.filterNew(surveys.Survey{ID: "SV"}, res.Responses())
	if len(filtered) != 2 {
		t.Fatalf("expected 2 responses after filter, got %d", len(filtered))
	}
	if filtered[0].ID != "keep" || filtered[1].ID != "error" {
		t.Fatalf("unexpected filter result %#v", filtered)
	}
}
