// Command import-posts publishes a directory of markdown posts as blog records.
// Each file opens with a %%% TOML front matter block:
//
//	%%%
//	title = "Why automate"
//	subtitle = "Fewer truck rolls"
//	category = "Automation"
//	image = "covers/automate.png"
//	published = true
//	[[author]]
//	fullname = "Ana Costa"
//	%%%
//
// Local images are uploaded through the configured gateway first.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/config"
	"github.com/debemdeboas/backoffice/internal/form"
	"github.com/debemdeboas/backoffice/internal/logger"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/upload"
	"github.com/debemdeboas/backoffice/internal/util"
)

type importer struct {
	client   *api.Client
	gateway  upload.Gateway
	category string
	dryRun   bool
	log      zerolog.Logger
}

func main() {
	dir := flag.String("path", "", "Directory containing .md files")
	configPath := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	category := flag.String("category", "", "Category used when a post does not name one")
	dryRun := flag.Bool("dry-run", false, "Validate and print the payloads without sending them")
	flag.Parse()

	godotenv.Load()
	l := logger.New("info")
	if *dir == "" {
		l.Fatal().Msg("--path is required")
	}

	config.SetLogger(l)
	if err := config.LoadConfig(*configPath); err != nil {
		l.Fatal().Err(err).Msg("Invalid configuration")
	}
	cfg := config.AppConfig
	l = logger.New(cfg.Logging.Level)
	api.SetLogger(l)
	upload.SetLogger(l)
	form.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	client, err := api.New(api.OptionsFrom(cfg.Backend))
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create backend client")
	}
	gateway, err := upload.New(ctx, cfg)
	if err != nil {
		l.Fatal().Err(err).Msg("Failed to create upload gateway")
	}

	imp := &importer{client: client, gateway: gateway, category: *category, dryRun: *dryRun, log: l}

	files, err := os.ReadDir(*dir)
	if err != nil {
		l.Fatal().Err(err).Str("path", *dir).Msg("Failed to read directory")
	}

	var imported, failed int
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}
		path := filepath.Join(*dir, file.Name())
		rec, err := imp.importFile(ctx, path)
		if err != nil {
			failed++
			l.Error().Err(err).Str("file", file.Name()).Msg("Failed to import post")
			continue
		}
		imported++
		l.Info().Str("file", file.Name()).Str("id", rec.ID()).Str("title", rec.Title()).Msg("Imported post")
	}

	l.Info().Int("imported", imported).Int("failed", failed).Bool("dry_run", *dryRun).Msg("Import complete")
	if failed > 0 {
		os.Exit(1)
	}
}

// importFile fills a blog form from one markdown file and submits it, so posts
// go through the same validation as the console.
func (imp *importer) importFile(ctx context.Context, path string) (model.Record, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	meta, err := util.GetFrontMatter(content)
	if err != nil {
		return nil, err
	}
	body, err := util.Body(content)
	if err != nil {
		return nil, err
	}

	ctrl := form.New(form.BlogSchema, imp.client, imp.gateway)
	defer ctrl.Close()
	if err := ctrl.Begin(); err != nil {
		return nil, err
	}

	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
	}
	category := meta.Category
	if category == "" {
		category = imp.category
	}
	fields := map[string]string{
		"title":       title,
		"subTitle":    meta.Subtitle,
		"category":    category,
		"description": string(body),
		"isPublished": strconv.FormatBool(meta.Published),
	}
	if author := meta.AuthorName(); author != "" {
		fields["author"] = author
	}
	for name, value := range fields {
		if err := ctrl.SetScalar(name, value); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	if err := imp.setImage(ctx, ctrl, filepath.Dir(path), meta.Image); err != nil {
		return nil, err
	}

	if imp.dryRun {
		if err := ctrl.Validate(); err != nil {
			return nil, err
		}
		out, _ := json.MarshalIndent(ctrl.Payload(), "", "  ")
		fmt.Println(string(out))
		return ctrl.Payload(), nil
	}
	return ctrl.Submit(ctx)
}

// setImage stores a remote cover URL as is and uploads a local one.
func (imp *importer) setImage(ctx context.Context, ctrl *form.Controller, dir, image string) error {
	switch {
	case image == "":
		return nil
	case strings.HasPrefix(image, "http://"), strings.HasPrefix(image, "https://"):
		return ctrl.SetScalar("image", image)
	case imp.dryRun:
		return ctrl.SetScalar("image", "file://"+filepath.Join(dir, image))
	}

	path := image
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, image)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	ticket, err := ctrl.UploadScalarImage("image", model.ImageFile{Name: filepath.Base(path), Data: data})
	if err != nil {
		return err
	}
	url, err := ticket.Wait(ctx)
	if err != nil {
		return err
	}
	imp.log.Debug().Str("image", image).Str("url", url).Msg("Cover uploaded")
	return nil
}
