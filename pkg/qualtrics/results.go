package qualtrics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/samvad-hq/qualclient/internal/domain"
	"github.com/samvad-hq/qualclient/pkg/table"
)

const (
	// ResponseIDColumn is the first column of the results table.
	ResponseIDColumn = "ResponseID"
	// CodeSuffix marks the coded-value column that follows each label column.
	CodeSuffix = "_Code"
)

// LongColumns are the columns of Results.Long.
var LongColumns = []string{"SurveyID", "ResponseID", "QRecode", "QID", "CQID", "TxtRespAnswer", "NumRespAnswer"}

// ColumnMeta describes one export column.
type ColumnMeta struct {
	Name         string
	QuestionText string
	ImportID     string
}

// Results is the merged label and code export of one survey.
// Table holds ResponseID followed by <col>, <col>_Code pairs in Columns order.
type Results struct {
	SurveyID string
	Columns  []ColumnMeta
	Table    *table.Table
}

// GetResults exports surveyID twice (labels, then codes) and merges the two
// files by response id.
func (c *Client) GetResults(ctx context.Context, surveyID string) (*Results, error) {
	surveyID = strings.TrimSpace(surveyID)
	if surveyID == "" {
		return nil, fmt.Errorf("survey id is required")
	}

	labels, err := c.runExport(ctx, surveyID, true)
	if err != nil {
		return nil, fmt.Errorf("pull results %s (labels): %w", surveyID, err)
	}
	codes, err := c.runExport(ctx, surveyID, false)
	if err != nil {
		return nil, fmt.Errorf("pull results %s (codes): %w", surveyID, err)
	}

	res, err := mergeExports(surveyID, labels, codes)
	if err != nil {
		return nil, fmt.Errorf("pull results %s: %w", surveyID, err)
	}

	c.log.InfoObj("survey results exported", "results_meta", map[string]any{
		"survey_id": surveyID,
		"responses": res.Table.Len(),
		"columns":   len(res.Columns),
	})
	return res, nil
}

// PullResults returns one row per response with raw text and coded values
// interleaved per question.
func (c *Client) PullResults(ctx context.Context, surveyID string) (*table.Table, error) {
	res, err := c.GetResults(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return res.Table, nil
}

func mergeExports(surveyID string, labels, codes *exportFile) (*Results, error) {
	li := responseIDIndex(labels.Header)
	ci := responseIDIndex(codes.Header)
	if li < 0 || ci < 0 {
		return nil, &ParseError{Op: "merge exports", Err: fmt.Errorf("export has no ResponseId column")}
	}

	codeIdx := make(map[string]int, len(codes.Header))
	for k, name := range codes.Header {
		if _, dup := codeIdx[name]; !dup {
			codeIdx[name] = k
		}
	}
	codeRows := make(map[string][]string, len(codes.Rows))
	for _, row := range codes.Rows {
		codeRows[row[ci]] = row
	}

	res := &Results{SurveyID: surveyID}
	cols := []string{ResponseIDColumn}
	for j, name := range labels.Header {
		if j == li {
			continue
		}
		cols = append(cols, name, name+CodeSuffix)
		importID := cellAt(labels.ImportIDs, j)
		if importID == "" {
			if k, ok := codeIdx[name]; ok {
				importID = cellAt(codes.ImportIDs, k)
			}
		}
		res.Columns = append(res.Columns, ColumnMeta{
			Name:         name,
			QuestionText: cellAt(labels.QuestionText, j),
			ImportID:     importID,
		})
	}

	res.Table = table.New(cols...)
	for _, row := range labels.Rows {
		id := row[li]
		codeRow := codeRows[id]
		cells := make([]string, 0, len(cols))
		cells = append(cells, id)
		for j, name := range labels.Header {
			if j == li {
				continue
			}
			code := ""
			if k, ok := codeIdx[name]; ok && codeRow != nil {
				code = codeRow[k]
			}
			cells = append(cells, row[j], code)
		}
		if err := res.Table.Append(cells...); err != nil {
			return nil, &ParseError{Op: "merge exports", Err: err}
		}
	}
	return res, nil
}

// Responses returns each row keyed by export column; coded values use the _Code suffix.
func (r *Results) Responses() []domain.Response {
	out := make([]domain.Response, 0, r.Table.Len())
	for i := range r.Table.Rows {
		rec := r.Table.Record(i)
		id := rec[ResponseIDColumn]
		delete(rec, ResponseIDColumn)
		out = append(out, domain.Response{ID: id, Answers: rec})
	}
	return out
}

// Long melts the results into one row per response and column, deriving the
// choice-qualified question id (CQID) for coded answers.
func (r *Results) Long() *table.Table {
	t := table.New(LongColumns...)
	for _, row := range r.Table.Rows {
		id := row[0]
		for j, col := range r.Columns {
			txt := row[1+2*j]
			num := numericOrEmpty(row[2+2*j])
			qid := col.ImportID
			if !strings.Contains(qid, "QID") {
				qid = col.Name
			}
			t.AppendMap(map[string]string{
				"SurveyID":      r.SurveyID,
				"ResponseID":    id,
				"QRecode":       col.Name,
				"QID":           qid,
				"CQID":          deriveCQID(qid, txt, num),
				"TxtRespAnswer": txt,
				"NumRespAnswer": num,
			})
		}
	}
	return t
}

var (
	cqidSuffixes  = strings.NewReplacer("-Group", "", "-Rank", "", "-TEXT", "")
	cqidXYValues  = strings.NewReplacer("-xyValues-x", "", "-xyValues-y", "")
	loopMergeMark = "_QID"
)

// deriveCQID maps a column's question id to the id of the answered choice.
// Coded single answers become QID-<code>; carousel/side-by-side ids keep the
// part before the last dash; loop & merge prefixes are dropped.
func deriveCQID(qid, txt, num string) string {
	var cqid string
	switch {
	case num != "" && txt != "" && num != txt &&
		strings.Contains(qid, "QID") &&
		!strings.Contains(qid, "TEXT") &&
		!strings.Contains(qid, "#") &&
		!strings.Contains(qid, "-"):
		cqid = qid + "-" + strings.SplitN(num, ".", 2)[0]
	case strings.Contains(qid, "#"):
		cqid = qid
		if i := strings.LastIndex(qid, "-"); i >= 0 {
			cqid = qid[:i]
		}
	default:
		cqid = cqidSuffixes.Replace(qid)
	}

	if strings.Contains(cqid, loopMergeMark) {
		rest := cqidXYValues.Replace(cqid)
		cqid = "QID" + rest[strings.Index(rest, loopMergeMark)+len(loopMergeMark):]
	}
	return cqid
}

func numericOrEmpty(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		return ""
	}
	return v
}

func responseIDIndex(header []string) int {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), ResponseIDColumn) {
			return i
		}
	}
	return -1
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
