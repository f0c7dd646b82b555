package qualtrics

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/tidwall/gjson"
)

const utf8BOM = "\ufeff"

// exportFile is the parsed delimited file of an export archive.
type exportFile struct {
	Name         string
	Header       []string
	QuestionText []string
	ImportIDs    []string
	Rows         [][]string
}

// readArchive opens a zip archive holding exactly one delimited file and parses it.
func readArchive(archivePath string) (*exportFile, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, &ParseError{Op: "open export archive", Err: err}
	}
	defer zr.Close()

	var files []*zip.File
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || strings.HasPrefix(f.Name, "__MACOSX/") {
			continue
		}
		files = append(files, f)
	}
	switch len(files) {
	case 0:
		return nil, &ParseError{Op: "read export archive", Err: fmt.Errorf("archive is empty")}
	case 1:
	default:
		return nil, &ParseError{Op: "read export archive", Err: fmt.Errorf("archive holds %d files, expected 1", len(files))}
	}

	rc, err := files[0].Open()
	if err != nil {
		return nil, &ParseError{Op: "open " + files[0].Name, Err: err}
	}
	defer rc.Close()

	out, err := parseDelimited(rc, delimiterFor(files[0].Name))
	if err != nil {
		return nil, &ParseError{Op: "parse " + files[0].Name, Err: err}
	}
	out.Name = files[0].Name
	return out, nil
}

func delimiterFor(name string) rune {
	switch strings.ToLower(path.Ext(name)) {
	case ".tsv", ".tab":
		return '\t'
	default:
		return ','
	}
}

// parseDelimited reads the header, strips the question-text and import-id rows
// Qualtrics places below it, and returns the remaining response rows.
func parseDelimited(r io.Reader, comma rune) (*exportFile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimPrefix(raw, []byte(utf8BOM))

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = comma
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("file has no header row")
	}

	out := &exportFile{Header: records[0]}
	rows := records[1:]
	switch {
	case len(rows) >= 2 && isImportIDRow(rows[1]):
		out.QuestionText = rows[0]
		out.ImportIDs = importIDs(rows[1])
		rows = rows[2:]
	case len(rows) >= 1 && isImportIDRow(rows[0]):
		out.ImportIDs = importIDs(rows[0])
		rows = rows[1:]
	}
	out.Rows = rows
	return out, nil
}

// isImportIDRow reports whether any cell holds an {"ImportId": ...} object.
func isImportIDRow(row []string) bool {
	for _, cell := range row {
		if importID(cell) != "" {
			return true
		}
	}
	return false
}

func importIDs(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = importID(cell)
	}
	return out
}

func importID(cell string) string {
	cell = strings.TrimSpace(cell)
	if !strings.HasPrefix(cell, "{") {
		return ""
	}
	// older exports use single quotes
	cell = strings.ReplaceAll(cell, "'", `"`)
	if !gjson.Valid(cell) {
		return ""
	}
	return gjson.Get(cell, "ImportId").String()
}
