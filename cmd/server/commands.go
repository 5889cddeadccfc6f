package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/homecare-engine/config"
	"github.com/warp/homecare-engine/factory"
	"github.com/warp/homecare-engine/generic"
	"github.com/warp/homecare-engine/logging"
	"github.com/warp/homecare-engine/pipeline"
	"github.com/warp/homecare-engine/rug"
)

func newEvaluateCmd(loadConfig func() (*config.Config, error)) *cobra.Command {
	var (
		assessmentFile string
		orgID          string
		asOf           string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Run the pipeline for one assessment and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

			a, err := newApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			req, err := readRequest(assessmentFile, orgID, asOf)
			if err != nil {
				return err
			}
			if req.OrganizationID == nil && cfg.DefaultOrganization != "" {
				req.OrganizationID = &cfg.DefaultOrganization
			}
			return evaluate(cmd.Context(), a.Pipeline, req, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&assessmentFile, "assessment", "", "assessment JSON file")
	cmd.Flags().StringVar(&orgID, "org", "", "organization for rate resolution")
	cmd.Flags().StringVar(&asOf, "as-of", "", "pricing date (YYYY-MM-DD), default today")
	cmd.MarkFlagRequired("assessment")
	return cmd
}

func readRequest(file, orgID, asOf string) (pipeline.Request, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return pipeline.Request{}, fmt.Errorf("read assessment: %w", err)
	}
	var a rug.Assessment
	if err := json.Unmarshal(data, &a); err != nil {
		return pipeline.Request{}, fmt.Errorf("%w: assessment %s: %v", generic.ErrInvalidInput, file, err)
	}

	req := pipeline.Request{Assessment: &a}
	if orgID != "" {
		req.OrganizationID = &orgID
	}
	if asOf != "" {
		d, err := generic.ParseDate(asOf)
		if err != nil {
			return pipeline.Request{}, fmt.Errorf("%w: as-of: %v", generic.ErrInvalidInput, err)
		}
		req.AsOf = d
	}
	return req, nil
}

func evaluate(ctx context.Context, p *pipeline.Pipeline, req pipeline.Request, out io.Writer) error {
	result, err := p.Run(ctx, req)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func newValidateCatalogCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate-catalog",
		Short: "Parse and validate a catalog file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := factory.Load(file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog ok: %d service types, %d templates, %d recommendations, %d rates\n",
				len(cat.ServiceTypes), len(cat.Templates), len(cat.Recommendations), len(cat.Rates))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "catalog file (yaml or json); empty checks the built-in catalog")
	return cmd
}
