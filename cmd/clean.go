package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clearcare/provider-cli/internal/model"
)

var (
	cleanJSON     string
	cleanNoSearch bool
	cleanFields   = map[string]*string{}
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean a single provider record",
	Long: `Cleans one provider record and prints the result as JSON.

The record comes either from --json or from individual field flags:

  provider-cli clean --name "dr amit sharma" --phone 9876543210 --specialty "heart doctor"
  provider-cli clean --json '{"name":"Dr. Priya Nair","city":"Kochi"}'`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		rec, err := recordFromFlags()
		if err != nil {
			return err
		}
		if len(rec) == 0 {
			return eris.New("clean: no record given (use --json or field flags)")
		}

		if cleanNoSearch {
			cfg.Search.Enabled = false
		}
		a, err := initAgent()
		if err != nil {
			return err
		}

		out := a.Clean(cmd.Context(), rec)
		zap.L().Info("record cleaned",
			zap.Int("accuracy_score", out.Result.AccuracyScore),
			zap.Bool("fallback", out.Fallback))

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.CleaningResult
			Fallback bool `json:"fallback"`
		}{out.Result, out.Fallback})
	},
}

func recordFromFlags() (model.ProviderRecord, error) {
	if cleanJSON != "" {
		var rec model.ProviderRecord
		if err := json.Unmarshal([]byte(cleanJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "clean: parse --json")
		}
		return rec, nil
	}

	rec := model.ProviderRecord{}
	for field, val := range cleanFields {
		if *val != "" {
			rec[field] = *val
		}
	}
	return rec, nil
}

func init() {
	cleanCmd.Flags().StringVar(&cleanJSON, "json", "", "full record as a JSON object")
	cleanCmd.Flags().BoolVar(&cleanNoSearch, "no-search", false, "disable online enrichment")
	for _, field := range []string{
		model.FieldName, model.FieldPhone, model.FieldEmail,
		model.FieldAddress, model.FieldSpecialty, model.FieldCity, model.FieldLicense,
	} {
		cleanFields[field] = cleanCmd.Flags().String(field, "", fmt.Sprintf("record %s field", field))
	}
	rootCmd.AddCommand(cleanCmd)
}
