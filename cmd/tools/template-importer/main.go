// cmd/tools/template-importer/main.go
//
// Seeds prompt templates from a JSON file into Postgres. Intended for local
// setup and demo data; the running service never uses it.
//
// Usage:
//   template-importer -file seed/templates.json [-validate-only]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"promptflow/internal/common/config"
	"promptflow/internal/common/database"
	"promptflow/internal/common/validation"
	"promptflow/internal/models"
	"promptflow/internal/repository"
)

func main() {
	filePath := flag.String("file", "", "Path to a JSON array of templates")
	validateOnly := flag.Bool("validate-only", false, "Validate the file without writing to the database")
	flag.Parse()

	if *filePath == "" {
		fmt.Println("Error: -file is required.")
		flag.Usage()
		os.Exit(1)
	}

	raw, err := os.ReadFile(*filePath)
	if err != nil {
		fmt.Printf("Error reading %s: %v\n", *filePath, err)
		os.Exit(1)
	}

	var docs []json.RawMessage
	if err := json.Unmarshal(raw, &docs); err != nil {
		fmt.Printf("Error: file must contain a JSON array of templates: %v\n", err)
		os.Exit(1)
	}

	validator := validation.MustValidator(validation.CreateTemplateSchema)
	templates := make([]*models.PromptTemplate, 0, len(docs))
	invalid := 0
	for i, doc := range docs {
		violations, err := validator.ValidateBytes(doc)
		if err != nil {
			fmt.Printf("Error validating entry %d: %v\n", i, err)
			os.Exit(1)
		}
		if len(violations) > 0 {
			invalid++
			for _, v := range violations {
				fmt.Printf("Entry %d invalid: %s\n", i, v)
			}
			continue
		}
		var t models.PromptTemplate
		if err := json.Unmarshal(doc, &t); err != nil {
			fmt.Printf("Error decoding entry %d: %v\n", i, err)
			os.Exit(1)
		}
		templates = append(templates, &t)
	}

	fmt.Printf("Parsed %d templates (%d invalid)\n", len(templates), invalid)
	if invalid > 0 {
		os.Exit(1)
	}
	if *validateOnly {
		fmt.Println("Validation passed.")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := pg.Ping(ctx); err != nil {
		fmt.Printf("Error pinging postgres: %v\n", err)
		os.Exit(1)
	}

	repo := repository.NewTemplates(pg.DB)
	for _, t := range templates {
		if err := repo.Create(ctx, t); err != nil {
			fmt.Printf("Error creating template %q: %v\n", t.Name, err)
			os.Exit(1)
		}
		fmt.Printf("Created template %d: %s\n", t.ID, t.Name)
	}
	fmt.Printf("Imported %d templates.\n", len(templates))
}
