package qualtrics

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/samvad-hq/qualclient/internal/domain"
	"github.com/samvad-hq/qualclient/pkg/table"
	"github.com/tidwall/gjson"
)

var (
	// DefinitionColumns are the columns of the table returned by PullDefinition.
	DefinitionColumns = []string{
		"FlowSort", "FlowID", "BlockID", "BlockDescription", "BlockElementSort",
		"QID", "DataExportTag", "QuestionText", "QuestionType", "Selector", "SubSelector",
	}
	// ChoiceColumns are the columns of Definition.ChoicesTable.
	ChoiceColumns = []string{"QID", "CQID", "Recode", "Display", "ChoiceOrder"}
)

// Definition is a flattened survey definition, questions in source order.
type Definition struct {
	SurveyID  string
	Name      string
	Questions []domain.Question
}

// GetDefinition fetches and flattens the definition of surveyID.
func (c *Client) GetDefinition(ctx context.Context, surveyID string) (*Definition, error) {
	surveyID = strings.TrimSpace(surveyID)
	if surveyID == "" {
		return nil, fmt.Errorf("survey id is required")
	}

	target := c.endpoint(definitionsPath, surveyID)
	resp, err := c.http.Get(ctx, target, c.headers())
	if err != nil {
		return nil, fmt.Errorf("pull definition %s: GET %s: %w", surveyID, target, err)
	}
	if err := decodeResponse(http.MethodGet, target, resp, nil); err != nil {
		return nil, fmt.Errorf("pull definition %s: %w", surveyID, err)
	}

	body := resp.Body()
	if !gjson.ValidBytes(body) {
		return nil, &ParseError{Op: "pull definition " + surveyID, Err: fmt.Errorf("invalid json body")}
	}
	result := gjson.GetBytes(body, "result")
	if !result.IsObject() {
		return nil, &ParseError{Op: "pull definition " + surveyID, Err: fmt.Errorf("missing result object")}
	}

	def := parseDefinition(surveyID, result)
	c.log.DebugObj("survey definition parsed", "definition_meta", map[string]any{
		"survey_id": surveyID,
		"questions": len(def.Questions),
	})
	return def, nil
}

// PullDefinition returns one row per question of surveyID, in source order.
func (c *Client) PullDefinition(ctx context.Context, surveyID string) (*table.Table, error) {
	def, err := c.GetDefinition(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return def.Table(), nil
}

// Table renders the question rows.
func (d *Definition) Table() *table.Table {
	t := table.New(DefinitionColumns...)
	for _, q := range d.Questions {
		t.AppendMap(map[string]string{
			"FlowSort":         sortString(q.FlowSort),
			"FlowID":           q.FlowID,
			"BlockID":          q.BlockID,
			"BlockDescription": q.BlockDescription,
			"BlockElementSort": sortString(q.BlockElementSort),
			"QID":              q.QID,
			"DataExportTag":    q.DataExportTag,
			"QuestionText":     q.QuestionText,
			"QuestionType":     q.QuestionType,
			"Selector":         q.Selector,
			"SubSelector":      q.SubSelector,
		})
	}
	return t
}

// ChoicesTable renders one row per question choice.
func (d *Definition) ChoicesTable() *table.Table {
	t := table.New(ChoiceColumns...)
	for _, q := range d.Questions {
		for _, ch := range q.Choices {
			t.AppendMap(map[string]string{
				"QID":         q.QID,
				"CQID":        ch.CQID,
				"Recode":      ch.Recode,
				"Display":     ch.Display,
				"ChoiceOrder": strconv.Itoa(ch.Order),
			})
		}
	}
	return t
}

func sortString(n int) string {
	if n < 0 {
		return ""
	}
	return strconv.Itoa(n)
}

type flowBlock struct {
	sort    int
	flowID  string
	blockID string
}

// parseDefinition orders questions by survey flow, then block element order.
// Questions not reachable from a live block follow in the order of the Questions
// object; those in the trash block keep its id and description.
func parseDefinition(surveyID string, result gjson.Result) *Definition {
	def := &Definition{
		SurveyID: surveyID,
		Name:     result.Get("SurveyName").String(),
	}

	questions := make(map[string]gjson.Result)
	var questionOrder []string
	result.Get("Questions").ForEach(func(key, q gjson.Result) bool {
		qid := firstNonEmpty(q.Get("QuestionID").String(), key.String())
		if _, dup := questions[qid]; !dup {
			questions[qid] = q
			questionOrder = append(questionOrder, qid)
		}
		return true
	})

	blocks := make(map[string]gjson.Result)
	var blockOrder []string
	result.Get("Blocks").ForEach(func(key, b gjson.Result) bool {
		id := firstNonEmpty(b.Get("ID").String(), key.String())
		if _, dup := blocks[id]; !dup {
			blocks[id] = b
			blockOrder = append(blockOrder, id)
		}
		return true
	})

	var flow []flowBlock
	idx := 0
	result.Get("SurveyFlow.Flow").ForEach(func(_, el gjson.Result) bool {
		collectFlow(el, idx, &flow)
		idx++
		return true
	})

	placedBlocks := make(map[string]bool)
	ordered := make([]flowBlock, 0, len(blockOrder))
	for _, fb := range flow {
		if placedBlocks[fb.blockID] {
			continue
		}
		if _, ok := blocks[fb.blockID]; !ok {
			continue
		}
		placedBlocks[fb.blockID] = true
		ordered = append(ordered, fb)
	}
	for _, id := range blockOrder {
		if placedBlocks[id] || strings.EqualFold(blocks[id].Get("Type").String(), "Trash") {
			continue
		}
		placedBlocks[id] = true
		ordered = append(ordered, flowBlock{sort: -1, blockID: id})
	}

	placedQuestions := make(map[string]bool)
	for _, fb := range ordered {
		blk := blocks[fb.blockID]
		desc := blk.Get("Description").String()
		elem := 0
		blk.Get("BlockElements").ForEach(func(_, el gjson.Result) bool {
			defer func() { elem++ }()
			if !strings.EqualFold(el.Get("Type").String(), "Question") {
				return true
			}
			qid := el.Get("QuestionID").String()
			q, ok := questions[qid]
			if !ok || placedQuestions[qid] {
				return true
			}
			placedQuestions[qid] = true

			question := buildQuestion(qid, q)
			question.FlowSort = fb.sort
			question.FlowID = fb.flowID
			question.BlockID = fb.blockID
			question.BlockDescription = desc
			question.BlockElementSort = elem
			def.Questions = append(def.Questions, question)
			return true
		})
	}

	// deleted questions keep the trash block they sit in
	type blockSlot struct {
		blockID string
		desc    string
		elem    int
	}
	trashed := make(map[string]blockSlot)
	for _, id := range blockOrder {
		blk := blocks[id]
		if !strings.EqualFold(blk.Get("Type").String(), "Trash") {
			continue
		}
		desc := blk.Get("Description").String()
		elem := 0
		blk.Get("BlockElements").ForEach(func(_, el gjson.Result) bool {
			if qid := el.Get("QuestionID").String(); qid != "" {
				if _, dup := trashed[qid]; !dup {
					trashed[qid] = blockSlot{blockID: id, desc: desc, elem: elem}
				}
			}
			elem++
			return true
		})
	}

	for _, qid := range questionOrder {
		if placedQuestions[qid] {
			continue
		}
		question := buildQuestion(qid, questions[qid])
		question.FlowSort = -1
		question.BlockElementSort = -1
		if slot, ok := trashed[qid]; ok {
			question.BlockID = slot.blockID
			question.BlockDescription = slot.desc
			question.BlockElementSort = slot.elem
		}
		def.Questions = append(def.Questions, question)
	}

	return def
}

// collectFlow walks nested flow elements (branches, groups, randomizers).
// Nested blocks inherit the position of their top-level ancestor.
func collectFlow(el gjson.Result, sort int, out *[]flowBlock) {
	switch el.Get("Type").String() {
	case "Block", "Standard", "Default":
		if id := el.Get("ID").String(); id != "" {
			*out = append(*out, flowBlock{sort: sort, flowID: el.Get("FlowID").String(), blockID: id})
		}
	}
	el.Get("Flow").ForEach(func(_, child gjson.Result) bool {
		collectFlow(child, sort, out)
		return true
	})
}

func buildQuestion(qid string, q gjson.Result) domain.Question {
	question := domain.Question{
		QID:           qid,
		DataExportTag: q.Get("DataExportTag").String(),
		QuestionText:  htmlText(q.Get("QuestionText").String()),
		QuestionType:  q.Get("QuestionType").String(),
		Selector:      q.Get("Selector").String(),
		SubSelector:   q.Get("SubSelector").String(),
	}

	choices := make(map[string]gjson.Result)
	var keys []string
	q.Get("Choices").ForEach(func(key, ch gjson.Result) bool {
		choices[key.String()] = ch
		keys = append(keys, key.String())
		return true
	})
	if order := q.Get("ChoiceOrder"); order.IsArray() && len(order.Array()) > 0 {
		keys = keys[:0]
		for _, v := range order.Array() {
			keys = append(keys, v.String())
		}
	}

	recodes := make(map[string]string)
	q.Get("RecodeValues").ForEach(func(key, v gjson.Result) bool {
		recodes[key.String()] = v.String()
		return true
	})

	for i, key := range keys {
		ch, ok := choices[key]
		if !ok {
			continue
		}
		recode := key
		if r, ok := recodes[key]; ok && r != "" {
			recode = r
		}
		question.Choices = append(question.Choices, domain.Choice{
			CQID:    qid + "-" + key,
			Recode:  recode,
			Display: htmlText(ch.Get("Display").String()),
			Order:   i + 1,
		})
	}
	return question
}
