package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/goliatone/go-docfill/internal/config"
	"github.com/goliatone/go-docfill/internal/store"
	"github.com/goliatone/go-docfill/pkg/assemble"
	"github.com/goliatone/go-docfill/pkg/builder"
	"github.com/goliatone/go-docfill/pkg/completion"
	"github.com/goliatone/go-docfill/pkg/document"
	"github.com/goliatone/go-docfill/pkg/forms"
	"github.com/goliatone/go-docfill/pkg/pipeline"
	"github.com/goliatone/go-docfill/pkg/submission"
	"github.com/goliatone/go-docfill/pkg/template"
)

const usage = `Usage: docfill <command> [flags]

Commands:
  extract   <document>   list the placeholders a document asks for
  build     <document>   build a template from a document's placeholders
  fill                   answer a template interactively
  generate  <document>   fill a document from a template and submission
  templates              list templates saved in the database

Run "docfill <command> --help" for command flags.`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "extract":
		err = cmdExtract(os.Args[2:])
	case "build":
		err = cmdBuild(os.Args[2:])
	case "fill":
		err = cmdFill(os.Args[2:])
	case "generate":
		err = cmdGenerate(os.Args[2:])
	case "templates":
		err = cmdTemplates(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "docfill: unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "docfill: %v\n", err)
		os.Exit(1)
	}
}

// newFlags creates a flag set carrying the shared configuration flags.
func newFlags(name string) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ExitOnError)
	config.Bind(flags)
	return flags
}

// newPipeline wires the pipeline from resolved configuration. With an API
// key the builder and assembler gain the completion service; without one the
// run is fully offline.
func newPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	logger := cfg.Logger()

	builderOpts := []builder.Option{builder.WithLogger(logger), builder.WithConcurrency(cfg.Concurrency)}
	assembleOpts := []assemble.Option{assemble.WithLogger(logger)}

	if cfg.APIKey != "" {
		clientOpts := []completion.Option{
			completion.WithBaseURL(cfg.BaseURL),
			completion.WithModel(cfg.Model),
			completion.WithTimeout(cfg.Timeout),
			completion.WithRetries(cfg.Retries, 0),
			completion.WithLogger(logger),
		}
		if cfg.RateLimit > 0 {
			clientOpts = append(clientOpts, completion.WithRateLimit(cfg.RateLimit))
		}
		client, err := completion.NewClient(cfg.APIKey, clientOpts...)
		if err != nil {
			return nil, err
		}
		builderOpts = append(builderOpts, builder.WithCompletion(client), builder.WithFieldSuggestions())
		assembleOpts = append(assembleOpts, assemble.WithCompletion(client))
	}

	return pipeline.New(
		pipeline.WithBuilder(builder.New(builderOpts...)),
		pipeline.WithAssembler(assemble.New(assembleOpts...)),
		pipeline.WithLogger(logger),
	), nil
}

func cmdExtract(args []string) error {
	flags := newFlags("extract")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("extract: expected one document path")
	}

	pipe, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	_, placeholders, err := pipe.Extract(document.SourceFromFile(flags.Arg(0)))
	if err != nil {
		return err
	}

	for _, ph := range placeholders {
		fmt.Printf("%s\t%d occurrence(s)\n", ph.Name, len(ph.Occurrences))
	}
	return nil
}

func cmdBuild(args []string) error {
	flags := newFlags("build")
	output := flags.String("output", "", "write the template JSON to this file (stdout if empty)")
	save := flags.String("save", "", "save the template in the database under this name")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("build: expected one document path")
	}

	pipe, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tpl, err := pipe.Build(ctx, document.SourceFromFile(flags.Arg(0)))
	if err != nil {
		return err
	}

	payload, err := template.Marshal(tpl)
	if err != nil {
		return err
	}

	if *save != "" {
		db, err := store.Open(cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SaveTemplate(ctx, *save, tpl); err != nil {
			return err
		}
		fmt.Printf("Template saved as %q\n", *save)
	}

	if *output != "" {
		if err := os.WriteFile(*output, payload, 0o644); err != nil {
			return fmt.Errorf("build: write output: %w", err)
		}
		fmt.Printf("Template written to %s\n", *output)
		return nil
	}
	if *save == "" {
		fmt.Println(string(payload))
	}
	return nil
}

func cmdFill(args []string) error {
	flags := newFlags("fill")
	templatePath := flags.String("template", "", "template JSON file")
	templateName := flags.String("name", "", "template name in the database")
	output := flags.String("output", "", "write the submission JSON to this file (stdout if empty)")
	save := flags.Bool("save-submission", false, "record the submission in the database (requires --name)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	ctx := context.Background()
	tpl, db, err := resolveTemplate(ctx, cfg, *templatePath, *templateName)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	session := forms.NewSession()
	tpl, values, err := session.Run(ctx, tpl)
	if err != nil {
		return err
	}

	if errs := submission.Validate(tpl, values); len(errs) > 0 {
		for _, fieldErr := range errs {
			fmt.Fprintf(os.Stderr, "  %v\n", fieldErr)
		}
		return fmt.Errorf("fill: submission did not validate")
	}

	if *save {
		if *templateName == "" {
			return fmt.Errorf("fill: --save-submission requires --name")
		}
		id, err := db.SaveSubmission(ctx, *templateName, values)
		if err != nil {
			return err
		}
		fmt.Printf("Submission saved with id %d\n", id)
	}

	payload, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("fill: encode submission: %w", err)
	}
	if *output != "" {
		if err := os.WriteFile(*output, payload, 0o644); err != nil {
			return fmt.Errorf("fill: write output: %w", err)
		}
		fmt.Printf("Submission written to %s\n", *output)
		return nil
	}
	fmt.Println(string(payload))
	return nil
}

func cmdGenerate(args []string) error {
	flags := newFlags("generate")
	templatePath := flags.String("template", "", "template JSON file")
	templateName := flags.String("name", "", "template name in the database")
	valuesPath := flags.String("values", "", "submission JSON file")
	submissionID := flags.Int64("submission", 0, "submission id in the database")
	output := flags.String("output", "", "output document path (required)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return fmt.Errorf("generate: expected one document path")
	}
	if *output == "" {
		return fmt.Errorf("generate: --output is required")
	}

	ctx := context.Background()
	tpl, db, err := resolveTemplate(ctx, cfg, *templatePath, *templateName)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	var values submission.Submission
	switch {
	case *valuesPath != "":
		payload, err := os.ReadFile(*valuesPath)
		if err != nil {
			return fmt.Errorf("generate: read values: %w", err)
		}
		if values, err = submission.Parse(payload); err != nil {
			return err
		}
	case *submissionID > 0:
		if db == nil {
			if db, err = store.Open(cfg.Database); err != nil {
				return err
			}
			defer db.Close()
		}
		saved, err := db.LoadSubmission(ctx, *submissionID)
		if err != nil {
			return err
		}
		values = saved.Values
	default:
		return fmt.Errorf("generate: either --values or --submission is required")
	}

	pipe, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	out, err := os.Create(*output)
	if err != nil {
		return fmt.Errorf("generate: create output: %w", err)
	}
	defer out.Close()

	err = pipe.Generate(ctx, pipeline.GenerateRequest{
		Source:   document.SourceFromFile(flags.Arg(0)),
		Template: tpl,
		Values:   values,
		Output:   out,
	})
	if err != nil {
		os.Remove(*output)
		return err
	}
	fmt.Printf("Document written to %s\n", *output)
	return nil
}

func cmdTemplates(args []string) error {
	flags := newFlags("templates")
	if err := flags.Parse(args); err != nil {
		return err
	}
	cfg, err := config.Load(flags)
	if err != nil {
		return err
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	names, err := db.ListTemplates(context.Background())
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Println("No templates saved.")
		return nil
	}
	fmt.Println(strings.Join(names, "\n"))
	return nil
}

// resolveTemplate loads a template from a file or from the database. The
// returned store handle is non-nil only when the database was opened; the
// caller owns closing it.
func resolveTemplate(ctx context.Context, cfg *config.Config, path, name string) (*template.Template, *store.Store, error) {
	switch {
	case path != "" && name != "":
		return nil, nil, fmt.Errorf("use either --template or --name, not both")
	case path != "":
		payload, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read template: %w", err)
		}
		tpl, err := template.Unmarshal(payload)
		if err != nil {
			return nil, nil, err
		}
		return tpl, nil, nil
	case name != "":
		db, err := store.Open(cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		tpl, err := db.LoadTemplate(ctx, name)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return tpl, db, nil
	default:
		return nil, nil, fmt.Errorf("either --template or --name is required")
	}
}
