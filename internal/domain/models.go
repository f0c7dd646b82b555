package domain

// Domain contains core models shared by the client and the harvester.

// SurveyMeta is one entry of the survey listing.
type SurveyMeta struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OwnerID      string `json:"ownerId,omitempty"`
	IsActive     bool   `json:"isActive"`
	CreationDate string `json:"creationDate"`
	LastModified string `json:"lastModified"`
}

// Question is one survey question positioned by flow, block and element order.
type Question struct {
	FlowSort         int
	FlowID           string
	BlockID          string
	BlockDescription string
	BlockElementSort int
	QID              string
	DataExportTag    string
	QuestionText     string
	QuestionType     string
	Selector         string
	SubSelector      string
	Choices          []Choice
}

// Choice is one answer option of a question.
type Choice struct {
	CQID    string
	Recode  string
	Display string
	Order   int
}

// Response is one exported respondent row keyed by export column.
type Response struct {
	ID      string            `json:"response_id"`
	Answers map[string]string `json:"answers"`
}
