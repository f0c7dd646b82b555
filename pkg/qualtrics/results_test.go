package qualtrics

import (
	"strings"
	"testing"
)

func TestDeriveCQID(t *testing.T) {
	cases := []struct {
		qid, txt, num, want string
	}{
		{"QID1", "Yes", "1", "QID1-1"},
		{"QID1", "Yes", "1.0", "QID1-1"},
		{"QID1", "4", "4", "QID1"},
		{"QID1", "", "1", "QID1"},
		{"QID2-TEXT", "because", "", "QID2"},
		{"QID3-Group", "A", "2", "QID3"},
		{"QID4#1-2", "Agree", "4", "QID4#1"},
		{"1_QID5", "Yes", "1", "QID5-1"},
		{"2_QID6-xyValues-x", "12", "12", "QID6"},
		{"startDate", "2024-01-01", "", "startDate"},
	}
	for _, tc := range cases {
		if got := deriveCQID(tc.qid, tc.txt, tc.num); got != tc.want {
			t.Errorf("deriveCQID(%q, %q, %q) = %q, want %q", tc.qid, tc.txt, tc.num, got, tc.want)
		}
	}
}

func TestResultsLong(t *testing.T) {
	labels, err := parseDelimited(strings.NewReader(labelsCSV), ',')
	if err != nil {
		t.Fatalf("parse labels: %v", err)
	}
	codes, err := parseDelimited(strings.NewReader(codesCSV), ',')
	if err != nil {
		t.Fatalf("parse codes: %v", err)
	}
	res, err := mergeExports("SV_1", labels, codes)
	if err != nil {
		t.Fatalf("mergeExports: %v", err)
	}

	long := res.Long()
	// 3 responses x 3 non-id columns
	if long.Len() != 9 {
		t.Fatalf("expected 9 long rows, got %d", long.Len())
	}
	rec := long.Record(1) // R_1 / Q1
	if rec["QRecode"] != "Q1" || rec["QID"] != "QID1" || rec["CQID"] != "QID1-1" || rec["TxtRespAnswer"] != "Yes" || rec["NumRespAnswer"] != "1" {
		t.Fatalf("unexpected long row %#v", rec)
	}
	rec = long.Record(0) // R_1 / StartDate has no QID import id
	if rec["QID"] != "StartDate" || rec["NumRespAnswer"] != "" {
		t.Fatalf("unexpected metadata long row %#v", rec)
	}
	rec = long.Record(2) // R_1 / Q2_TEXT
	if rec["CQID"] != "QID2_TEXT" || rec["SurveyID"] != "SV_1" {
		t.Fatalf("unexpected text long row %#v", rec)
	}

	responses := res.Responses()
	if len(responses) != 3 || responses[2].ID != "R_3" || responses[2].Answers["Q2_TEXT"] != "tooling, mostly" {
		t.Fatalf("unexpected responses %#v", responses)
	}
	if _, ok := responses[0].Answers[ResponseIDColumn]; ok {
		t.Fatalf("response id must not be duplicated into answers")
	}
}

func TestParseDelimitedImportIDOnly(t *testing.T) {
	raw := "ResponseId,Q1\n{'ImportId': '_recordId'},{'ImportId': 'QID1'}\nR_1,x\n"
	out, err := parseDelimited(strings.NewReader(raw), ',')
	if err != nil {
		t.Fatalf("parseDelimited: %v", err)
	}
	if len(out.Rows) != 1 || out.QuestionText != nil {
		t.Fatalf("unexpected parse result %#v", out)
	}
	if out.ImportIDs[1] != "QID1" {
		t.Fatalf("unexpected import ids %v", out.ImportIDs)
	}
}

func TestParseDelimitedTab(t *testing.T) {
	out, err := parseDelimited(strings.NewReader("ResponseId\tQ1\nR_1\ta,b\n"), delimiterFor("export.tsv"))
	if err != nil {
		t.Fatalf("parseDelimited: %v", err)
	}
	if len(out.Rows) != 1 || out.Rows[0][1] != "a,b" {
		t.Fatalf("unexpected rows %#v", out.Rows)
	}
}

func TestHTMLText(t *testing.T) {
	cases := map[string]string{
		"":                                   "",
		"plain   text":                       "plain text",
		"<p>Hello <b>there</b></p>":          "Hello there",
		"<style>.x{}</style><div>Body</div>": "Body",
		"Fish &amp; chips":                   "Fish & chips",
	}
	for in, want := range cases {
		if got := htmlText(in); got != want {
			t.Errorf("htmlText(%q) = %q, want %q", in, got, want)
		}
	}
}
