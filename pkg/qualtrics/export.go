package qualtrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Export job states reported by the progress endpoint.
const (
	StatusInProgress = "in progress"
	StatusComplete   = "complete"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

type exportRequest struct {
	Format    string `json:"format"`
	UseLabels bool   `json:"useLabels"`
	SurveyID  string `json:"surveyId"`
	EndDate   string `json:"endDate"`
}

type exportStartEnvelope struct {
	Result struct {
		ID string `json:"id"`
	} `json:"result"`
}

type exportProgressEnvelope struct {
	Result exportProgress `json:"result"`
}

type exportProgress struct {
	Status          string  `json:"status"`
	PercentComplete float64 `json:"percentComplete"`
	File            string  `json:"file"`
}

// runExport starts one export job, waits for it and parses the downloaded archive.
func (c *Client) runExport(ctx context.Context, surveyID string, useLabels bool) (*exportFile, error) {
	jobID, err := c.startExport(ctx, surveyID, useLabels)
	if err != nil {
		return nil, err
	}

	fileURL, err := c.waitForExport(ctx, surveyID, jobID, useLabels)
	if err != nil {
		return nil, err
	}

	return c.downloadExport(ctx, jobID, fileURL)
}

func (c *Client) startExport(ctx context.Context, surveyID string, useLabels bool) (string, error) {
	body := exportRequest{
		Format:    "csv",
		UseLabels: useLabels,
		SurveyID:  surveyID,
		EndDate:   c.now().UTC().Format("2006-01-02T15:04:05") + "Z",
	}

	var env exportStartEnvelope
	if err := c.postJSON(ctx, c.endpoint(exportsPath), body, &env); err != nil {
		return "", fmt.Errorf("start export for survey %s: %w", surveyID, err)
	}
	jobID := strings.TrimSpace(env.Result.ID)
	if jobID == "" {
		return "", &ParseError{Op: "start export for survey " + surveyID, Err: fmt.Errorf("response has no export id")}
	}

	c.log.DebugObj("export started", "export_job", map[string]any{
		"survey_id":  surveyID,
		"job_id":     jobID,
		"use_labels": useLabels,
	})
	return jobID, nil
}

// waitForExport polls the progress endpoint at a fixed interval until the job
// completes, fails, the export timeout elapses, or ctx is done.
func (c *Client) waitForExport(ctx context.Context, surveyID, jobID string, useLabels bool) (string, error) {
	deadline := c.now().Add(c.cfg.ExportTimeout)
	target := c.endpoint(exportsPath, jobID)

	for {
		var env exportProgressEnvelope
		if err := c.getJSON(ctx, target, &env); err != nil {
			return "", fmt.Errorf("poll export %s: %w", jobID, err)
		}
		progress := env.Result
		status := strings.ToLower(strings.TrimSpace(progress.Status))

		c.log.DebugObj("export progress", "export_progress", map[string]any{
			"survey_id":        surveyID,
			"job_id":           jobID,
			"use_labels":       useLabels,
			"status":           status,
			"percent_complete": progress.PercentComplete,
		})

		switch status {
		case StatusComplete:
			return strings.TrimSpace(progress.File), nil
		case StatusFailed, StatusCancelled:
			return "", &ExportError{JobID: jobID, SurveyID: surveyID, Status: status}
		}

		if !c.now().Before(deadline) {
			return "", fmt.Errorf("export %s for survey %s still %q after %s: %w",
				jobID, surveyID, status, c.cfg.ExportTimeout, ErrExportTimeout)
		}

		timer := time.NewTimer(c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", fmt.Errorf("poll export %s: %w", jobID, ctx.Err())
		case <-timer.C:
		}
	}
}

// downloadExport saves the archive to a temporary directory, parses it and
// removes the directory before returning.
func (c *Client) downloadExport(ctx context.Context, jobID, fileURL string) (*exportFile, error) {
	if fileURL == "" {
		fileURL = c.endpoint(exportsPath, jobID) + "/file"
	}

	dir, err := os.MkdirTemp("", "qualclient-export-*")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	dest := filepath.Join(dir, "export.zip")
	resp, err := c.http.Download(ctx, fileURL, c.headers(), dest)
	if err != nil {
		return nil, fmt.Errorf("download export %s: %w", jobID, err)
	}
	if !isSuccess(resp.StatusCode()) {
		return nil, fmt.Errorf("download export %s: %w", jobID, newAPIError(http.MethodGet, fileURL, resp.StatusCode(), resp.Body()))
	}

	file, err := readArchive(dest)
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", jobID, err)
	}
	return file, nil
}
