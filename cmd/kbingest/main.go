// Command kbingest ingests documents into a tenant's knowledge base and
// queries the result. Configuration comes from an optional JSON file,
// overridden by KBINGEST_* environment variables; a .env file in the
// working directory is loaded first if present.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/mwestall/kbingest"
	"github.com/mwestall/kbingest/store"
)

func main() {
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	app := &cli.App{
		Name:  "kbingest",
		Usage: "multi-tenant document knowledge ingestion",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "path to JSON config file"},
			&cli.StringFlag{Name: "tenant", Aliases: []string{"t"}, Required: true, Usage: "tenant identifier"},
			&cli.StringFlag{Name: "db", Usage: "override database path", EnvVars: []string{"KBINGEST_DB_PATH"}},
		},
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "ingest one or more files",
				ArgsUsage: "<file> [file...]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "document type tag"},
					&cli.BoolFlag{Name: "no-entities", Usage: "skip entity extraction and linking"},
				},
				Action: cmdIngest,
			},
			{
				Name:      "search",
				Usage:     "semantic search over ingested chunks",
				ArgsUsage: "<query>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "k", Value: 5, Usage: "number of results"},
				},
				Action: cmdSearch,
			},
			{
				Name:   "documents",
				Usage:  "list the tenant's documents",
				Action: cmdDocuments,
			},
			{
				Name:      "delete",
				Usage:     "delete a document from every store",
				ArgsUsage: "<document-id>",
				Action:    cmdDelete,
			},
			{
				Name:  "entities",
				Usage: "manage canonical entities",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "register a canonical entity",
						ArgsUsage: "<type> <name>",
						Flags: []cli.Flag{
							&cli.StringSliceFlag{Name: "alias", Usage: "known alias (repeatable)"},
							&cli.StringFlag{Name: "shorthand", Usage: "internal code"},
							&cli.StringFlag{Name: "address", Usage: "full address"},
							&cli.StringFlag{Name: "street", Usage: "street portion of the address"},
						},
						Action: cmdEntityAdd,
					},
					{
						Name:   "review",
						Usage:  "list entities flagged for review",
						Action: cmdEntityReview,
					},
					{
						Name:      "resolve",
						Usage:     "confirm a flagged entity as canonical",
						ArgsUsage: "<entity-id>",
						Action:    cmdEntityResolve,
					},
				},
			},
			{
				Name:   "stats",
				Usage:  "per-tenant row counts across stores",
				Action: cmdStats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig assembles the pipeline configuration from file, then
// environment, then flags, later sources winning.
func loadConfig(c *cli.Context) (kbingest.Config, error) {
	cfg := kbingest.DefaultConfig()

	if path := c.String("config"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return cfg, fmt.Errorf("opening config: %w", err)
		}
		defer f.Close()
		if err := json.NewDecoder(f).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if v := os.Getenv("KBINGEST_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("KBINGEST_CHAT_BASE_URL"); v != "" {
		cfg.Chat.BaseURL = v
	}
	if v := os.Getenv("KBINGEST_CHAT_API_KEY"); v != "" {
		cfg.Chat.APIKey = v
	}
	if v := os.Getenv("KBINGEST_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("KBINGEST_EMBED_BASE_URL"); v != "" {
		cfg.Embedding.BaseURL = v
	}
	if v := os.Getenv("KBINGEST_EMBED_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("KBINGEST_EMBED_MODEL"); v != "" {
		cfg.Embedding.EmbeddingModel = v
	}
	if v := os.Getenv("KBINGEST_ARCHIVE_BUCKET"); v != "" {
		cfg.Archive.Type = "s3"
		cfg.Archive.S3Bucket = v
	}

	// Well-known fallback when no explicit key is configured.
	if cfg.Chat.APIKey == "" {
		cfg.Chat.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if v := c.String("db"); v != "" {
		cfg.DBPath = v
	}
	return cfg, nil
}

func openPipeline(c *cli.Context) (*kbingest.Pipeline, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return kbingest.New(cfg)
}

func cmdIngest(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one file is required", 2)
	}
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	var opts []kbingest.IngestOption
	if t := c.String("type"); t != "" {
		opts = append(opts, kbingest.WithDocumentType(t))
	}
	if c.Bool("no-entities") {
		opts = append(opts, kbingest.WithoutEntities())
	}

	tenant := c.String("tenant")
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, path := range c.Args().Slice() {
		result, err := p.Ingest(context.Background(), tenant, path, opts...)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := enc.Encode(result); err != nil {
			return err
		}
	}
	return nil
}

func cmdSearch(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one query argument is required", 2)
	}
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	hits, err := p.SearchSimilar(context.Background(), c.String("tenant"), c.Args().First(), c.Int("k"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tDOCUMENT\tPOS\tCONTENT")
	for _, h := range hits {
		content := h.Content
		if len(content) > 80 {
			content = content[:77] + "..."
		}
		fmt.Fprintf(w, "%.3f\t%s\t%d\t%s\n", h.Score, h.Filename, h.Position, content)
	}
	return w.Flush()
}

func cmdDocuments(c *cli.Context) error {
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	docs, err := p.ListDocuments(context.Background(), c.String("tenant"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DOCUMENT\tFILENAME\tFORMAT\tSTATUS\tCREATED")
	for _, d := range docs {
		fmt.Fprintf(w, "%.12s\t%s\t%s\t%s\t%s\n", d.DocumentID, d.Filename, d.Format, d.Status, d.CreatedAt)
	}
	return w.Flush()
}

func cmdDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one document id is required", 2)
	}
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.DeleteDocument(context.Background(), c.String("tenant"), c.Args().First()); err != nil {
		return err
	}
	fmt.Println("deleted")
	return nil
}

func cmdEntityAdd(c *cli.Context) error {
	if c.NArg() != 2 {
		return cli.Exit("usage: entities add <type> <name>", 2)
	}
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	id, err := p.AddEntity(context.Background(), store.Entity{
		TenantID:   c.String("tenant"),
		EntityType: c.Args().Get(0),
		Name:       c.Args().Get(1),
		Aliases:    c.StringSlice("alias"),
		Shorthand:  c.String("shorthand"),
		Address:    c.String("address"),
		Street:     c.String("street"),
	})
	if err != nil {
		return err
	}
	fmt.Printf("entity %d\n", id)
	return nil
}

func cmdEntityReview(c *cli.Context) error {
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	entities, err := p.EntitiesNeedingReview(context.Background(), c.String("tenant"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTYPE\tNAME\tVALUE")
	for _, e := range entities {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.EntityType, e.Name, e.Value)
	}
	return w.Flush()
}

func cmdEntityResolve(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one entity id is required", 2)
	}
	var id int64
	if _, err := fmt.Sscanf(c.Args().First(), "%d", &id); err != nil {
		return cli.Exit("entity id must be numeric", 2)
	}
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.ResolveEntityReview(context.Background(), c.String("tenant"), id); err != nil {
		return err
	}
	fmt.Println("resolved")
	return nil
}

func cmdStats(c *cli.Context) error {
	p, err := openPipeline(c)
	if err != nil {
		return err
	}
	defer p.Close()

	stats, err := p.TenantStats(context.Background(), c.String("tenant"))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}
