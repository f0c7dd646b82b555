package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/qualclient/internal/app"
	"github.com/samvad-hq/qualclient/internal/config"
	"github.com/samvad-hq/qualclient/internal/logger"
)

const usage = `usage: qualclient [flags] <command> [survey-id] [flags]

commands:
  surveys              list surveys visible to the token
  definition <id>      questions of a survey (--choices for the choice table)
  results <id>         responses of a survey (--long for one row per answer)

flags:
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "qualclient: %v\n", err)
		}
		os.Exit(1)
	}
}

type options struct {
	token   string
	url     string
	choices bool
	long    bool
	out     app.Output
}

func parseArgs(args []string) (string, string, options, error) {
	var opts options
	fs := flag.NewFlagSet("qualclient", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.token, "token", "", "API token (overrides QUALTRICS_API_TOKEN)")
	fs.StringVar(&opts.url, "url", "", "API base URL, e.g. https://<dc>.qualtrics.com/API/v3/ (overrides QUALTRICS_API_URL)")
	fs.StringVar(&opts.out.Format, "format", app.FormatCSV, "output format: csv or jsonl")
	fs.StringVar(&opts.out.Path, "out", "", "write to this file instead of stdout")
	fs.StringVar(&opts.out.SQLitePath, "sqlite", "", "write the table into this SQLite database")
	fs.StringVar(&opts.out.Table, "table", "", "SQLite table name (defaults per command)")
	fs.BoolVar(&opts.choices, "choices", false, "definition: output the choice table")
	fs.BoolVar(&opts.long, "long", false, "results: output the long table")

	// flags may surround the command and the survey id
	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return "", "", opts, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		rest = fs.Args()[1:]
	}

	if len(positional) == 0 {
		fs.Usage()
		return "", "", opts, flag.ErrHelp
	}
	if len(positional) > 2 {
		return "", "", opts, fmt.Errorf("unexpected arguments %v", positional[2:])
	}
	cmd := positional[0]
	var surveyID string
	if len(positional) == 2 {
		surveyID = positional[1]
	}

	switch cmd {
	case "surveys":
		if surveyID != "" {
			return "", "", opts, fmt.Errorf("surveys takes no survey id")
		}
	case "definition", "results":
		if surveyID == "" {
			return "", "", opts, fmt.Errorf("%s requires a survey id", cmd)
		}
	default:
		fs.Usage()
		return "", "", opts, fmt.Errorf("unknown command %q", cmd)
	}
	return cmd, surveyID, opts, nil
}

func run(args []string, stdout io.Writer) error {
	cmd, surveyID, opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.token != "" {
		cfg.APIToken = opts.token
	}
	if opts.url != "" {
		cfg.APIURL = opts.url
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exp, err := app.NewExporter(cfg, log)
	if err != nil {
		return err
	}

	switch cmd {
	case "surveys":
		err = exp.Surveys(ctx, opts.out, stdout)
	case "definition":
		err = exp.Definition(ctx, surveyID, opts.choices, opts.out, stdout)
	case "results":
		err = exp.Results(ctx, surveyID, opts.long, opts.out, stdout)
	}
	if err != nil {
		logger.ErrorObj("command failed", "command_error", map[string]any{
			"command":   cmd,
			"survey_id": surveyID,
			"error":     err.Error(),
		})
		return fmt.Errorf("%s: %w", cmd, err)
	}
	return nil
}
