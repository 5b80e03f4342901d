package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/thywilljoshua/docladder/internal/adaptive"
	"github.com/thywilljoshua/docladder/internal/document"
	"github.com/thywilljoshua/docladder/internal/markdown"
	"github.com/thywilljoshua/docladder/internal/pipeline"
	"github.com/thywilljoshua/docladder/internal/report"
	"github.com/thywilljoshua/docladder/internal/store"
	"github.com/thywilljoshua/docladder/internal/strategy"
	"github.com/thywilljoshua/docladder/internal/strategy/layout"
	"github.com/thywilljoshua/docladder/internal/strategy/ocr"
	"github.com/thywilljoshua/docladder/internal/strategy/structural"
	"github.com/thywilljoshua/docladder/internal/strategy/vision"
)

func parseCmd(a *app) *cobra.Command {
	var profile string
	var category string
	var maxLevel string
	var forceVision bool
	var maxVisionPages int
	var noHybrid bool
	var noStop bool
	var noCache bool
	var pageless string
	var recordDB string
	var reportPath string
	var markdownPath string
	var documentPath string

	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Extract a document, escalating strategies until confidence is sufficient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile == "" {
				profile = a.cfg.Profile
			}
			pcfg, err := pipeline.Profile(profile)
			if err != nil {
				return err
			}
			pcfg.VisionBatchSize = a.cfg.Vision.BatchSize
			if cmd.Flags().Changed("max-vision-pages") {
				pcfg.MaxVisionPages = maxVisionPages
			}
			if noHybrid {
				pcfg.EnableHybrid = false
			}
			if noStop {
				pcfg.StopOnSuccess = false
			}
			if pageless != "" {
				if pcfg.Pageless, err = pipeline.ParsePagelessPolicy(pageless); err != nil {
					return err
				}
			}

			var opts adaptive.ParseOptions
			opts.ForceVision = forceVision
			if opts.Category, err = document.ParseCategory(category); err != nil {
				return err
			}
			if maxLevel != "" {
				if opts.MaxLevel, err = pipeline.ParseTag(maxLevel); err != nil {
					return err
				}
			}

			options := []adaptive.Option{adaptive.WithLogger(a.logger)}
			if recordDB == "" {
				recordDB = a.cfg.Store.Path
			}
			if recordDB != "" {
				st, err := store.Open(cmd.Context(), recordDB, a.logger)
				if err != nil {
					return err
				}
				defer st.Close()
				options = append(options, adaptive.WithRecorder(st))
				if !noCache {
					options = append(options, adaptive.WithCache(st))
				}
			}

			res, err := adaptive.ParseFile(cmd.Context(), args[0], pcfg, a.providers(pcfg), opts, options...)
			if err != nil {
				return err
			}

			if reportPath != "" {
				if err := report.Save(reportPath, res); err != nil {
					return err
				}
			}
			if markdownPath != "" {
				path, err := writeMarkdown(markdownPath, res)
				if err != nil {
					return err
				}
				a.logger.Info("markdown.written", "path", path)
			}
			if documentPath != "" {
				b, err := json.MarshalIndent(res.Document, "", "  ")
				if err != nil {
					return err
				}
				if err := os.WriteFile(documentPath, append(b, '\n'), 0o644); err != nil {
					return fmt.Errorf("write document: %w", err)
				}
			}
			return report.WriteJSON(cmd.OutOrStdout(), res.Summary())
		},
	}

	cmd.Flags().StringVar(&profile, "profile", "", "pipeline profile: fast, balanced, quality or full (default from DOCLADDER_PROFILE)")
	cmd.Flags().StringVar(&category, "category", "", "document category used to pick confidence thresholds")
	cmd.Flags().StringVar(&maxLevel, "max-level", "", "highest strategy to run: structural, layout, ocr or vision")
	cmd.Flags().BoolVar(&forceVision, "force-vision", false, "skip the ladder and extract with the vision model only")
	cmd.Flags().IntVar(&maxVisionPages, "max-vision-pages", 0, "cap on pages sent to vision in a hybrid merge (0 = unlimited)")
	cmd.Flags().BoolVar(&noHybrid, "no-hybrid", false, "disable per-page vision merging")
	cmd.Flags().BoolVar(&noStop, "no-stop", false, "run every strategy even after one succeeds")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "record attempts but do not reuse documents from the record database")
	cmd.Flags().StringVar(&pageless, "pageless", "", "hybrid merge handling of entities without a box: page_one or keep")
	cmd.Flags().StringVar(&recordDB, "record-db", "", "SQLite file to record attempts in (default from DOCLADDER_RECORD_DB)")
	cmd.Flags().StringVar(&reportPath, "report", "", "write a run report to this .json or .xlsx file")
	cmd.Flags().StringVarP(&markdownPath, "markdown", "o", "", "write markdown to this file, or into this directory")
	cmd.Flags().StringVar(&documentPath, "document", "", "write the extracted document as JSON to this file")

	return cmd
}

func (a *app) providers(pcfg pipeline.Config) map[pipeline.Tag]strategy.Provider {
	return map[pipeline.Tag]strategy.Provider{
		pipeline.TagStructural: structural.Provider(structural.WithLogger(a.logger)),
		pipeline.TagLayout:     layout.Provider(layout.WithLogger(a.logger)),
		pipeline.TagOCR: ocr.Provider(ocr.Config{
			Pdftoppm:       a.cfg.OCR.Pdftoppm,
			DPI:            a.cfg.OCR.DPI,
			Languages:      a.cfg.OCR.Languages,
			TessdataPrefix: a.cfg.OCR.TessdataPrefix,
			MaxPages:       a.cfg.OCR.MaxPages,
		}, ocr.WithLogger(a.logger)),
		pipeline.TagVision: vision.Provider(vision.Config{
			APIKey:       a.cfg.Vision.APIKey,
			Model:        a.cfg.Vision.Model,
			BatchSize:    pcfg.VisionBatchSize,
			Concurrency:  a.cfg.Vision.Concurrency,
			Timeout:      a.cfg.Vision.Timeout,
			MaxImageSide: a.cfg.Vision.MaxImageSide,
		}, vision.WithLogger(a.logger)),
	}
}

// writeMarkdown writes the rendered document to path. When path is an
// existing directory the file is named after the title, or the source.
func writeMarkdown(path string, res *adaptive.Result) (string, error) {
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		name := markdown.Slug(res.Document.Metadata.Title)
		if name == "" {
			name = markdown.Slug(strategy.TitleFromPath(res.Source))
		}
		if name == "" {
			name = "document"
		}
		path = filepath.Join(path, name+".md")
	}
	if err := os.WriteFile(path, []byte(markdown.Render(res.Document)), 0o644); err != nil {
		return "", fmt.Errorf("write markdown: %w", err)
	}
	return path, nil
}
