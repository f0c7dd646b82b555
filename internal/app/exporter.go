package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/samvad-hq/qualclient/internal/config"
	"github.com/samvad-hq/qualclient/internal/logger"
	"github.com/samvad-hq/qualclient/pkg/qualtrics"
	"github.com/samvad-hq/qualclient/pkg/table"
)

const (
	// FormatCSV writes a header row followed by one CSV record per row.
	FormatCSV = "csv"
	// FormatJSONLines writes one JSON object per row.
	FormatJSONLines = "jsonl"
)

// Output selects where an exported table goes. SQLitePath takes precedence
// over Path; an empty Path writes to the caller's writer.
type Output struct {
	Format     string
	Path       string
	SQLitePath string
	Table      string
}

// Exporter runs one API operation and writes the resulting table.
type Exporter struct {
	client *qualtrics.Client
	log    logger.Logger
	create func(path string) (io.WriteCloser, error)
}

// NewExporter builds a one-shot exporter from config.
func NewExporter(cfg *config.Config, log logger.Logger) (*Exporter, error) {
	if log == nil {
		log = &logger.NopLogger{}
	}
	client, err := NewQualtricsClient(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Exporter{client: client, log: log, create: createFile}, nil
}

func createFile(path string) (io.WriteCloser, error) {
	return os.Create(path)
}

// Surveys writes the survey metadata table.
func (e *Exporter) Surveys(ctx context.Context, out Output, w io.Writer) error {
	t, err := e.client.PullSurveyMeta(ctx)
	if err != nil {
		return err
	}
	return e.write(ctx, t, out, "survey_meta", w)
}

// Definition writes the question table of a survey, or its choice table.
func (e *Exporter) Definition(ctx context.Context, surveyID string, choices bool, out Output, w io.Writer) error {
	def, err := e.client.GetDefinition(ctx, surveyID)
	if err != nil {
		return err
	}
	if choices {
		return e.write(ctx, def.ChoicesTable(), out, "survey_choices", w)
	}
	return e.write(ctx, def.Table(), out, "survey_definition", w)
}

// Results writes the wide response table of a survey, or its long form.
func (e *Exporter) Results(ctx context.Context, surveyID string, long bool, out Output, w io.Writer) error {
	res, err := e.client.GetResults(ctx, surveyID)
	if err != nil {
		return err
	}
	if long {
		return e.write(ctx, res.Long(), out, "survey_results_long", w)
	}
	return e.write(ctx, res.Table, out, "survey_results", w)
}

func (e *Exporter) write(ctx context.Context, t *table.Table, out Output, defaultTable string, w io.Writer) error {
	if out.SQLitePath != "" {
		name := strings.TrimSpace(out.Table)
		if name == "" {
			name = defaultTable
		}
		db, err := table.OpenSQLite(out.SQLitePath)
		if err != nil {
			return err
		}
		werr := t.WriteSQLite(ctx, db, name)
		if cerr := db.Close(); cerr != nil && werr == nil {
			werr = fmt.Errorf("close sqlite: %w", cerr)
		}
		if werr != nil {
			return werr
		}
		e.log.InfoObj("table written", "export_output", map[string]any{
			"sqlite": out.SQLitePath,
			"table":  name,
			"rows":   t.Len(),
		})
		return nil
	}

	format := strings.ToLower(strings.TrimSpace(out.Format))
	switch format {
	case "", FormatCSV, FormatJSONLines, "json":
	default:
		return fmt.Errorf("unsupported output format %q", out.Format)
	}

	if out.Path == "" {
		if w == nil {
			w = os.Stdout
		}
		return e.writeFormat(t, format, out.Path, w)
	}

	if dir := filepath.Dir(out.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := e.create(out.Path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	werr := e.writeFormat(t, format, out.Path, f)
	if cerr := f.Close(); cerr != nil && werr == nil {
		return fmt.Errorf("close output file: %w", cerr)
	}
	return werr
}

func (e *Exporter) writeFormat(t *table.Table, format, path string, w io.Writer) error {
	var err error
	if format == FormatJSONLines || format == "json" {
		err = t.WriteJSONLines(w)
	} else {
		err = t.WriteCSV(w)
	}
	if err != nil {
		return err
	}
	e.log.DebugObj("table written", "export_output", map[string]any{
		"path":   path,
		"format": format,
		"rows":   t.Len(),
	})
	return nil
}
