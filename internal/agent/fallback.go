package agent

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clearcare/provider-cli/internal/enrich"
	"github.com/clearcare/provider-cli/internal/model"
)

// specialtyRules maps colloquial specialty keywords to standard
// discipline names. Order matters: the first matching keyword wins.
var specialtyRules = []struct {
	keyword   string
	specialty string
}{
	{"heart", "Cardiology"},
	{"bone", "Orthopedics"},
	{"skin", "Dermatology"},
	{"eye", "Ophthalmology"},
	{"child", "Pediatrics"},
	{"brain", "Neurology"},
}

var titleCaser = cases.Title(language.English)

// FallbackClean produces a deterministic, rule-based cleaning when the
// model path is unavailable. It applies only transformations that cannot
// be wrong: phone formatting, name casing, specialty keyword mapping.
// The score is capped low (40 with enriched data, 30 without) so
// downstream consumers can tell these records were never model-reviewed.
// The cause that forced the fallback is recorded in the first issue.
func FallbackClean(rec model.ProviderRecord, enriched []string, cause error) *model.CleaningResult {
	cleaned := rec.Clone()
	lead := "AI cleaning unavailable, fallback rules applied"
	if cause != nil {
		lead += ": " + cause.Error()
	}
	issues := []string{lead}

	if name := strings.TrimSpace(cleaned.Get(model.FieldName)); name != "" {
		cleaned[model.FieldName] = normalizeName(name)
	} else {
		issues = append(issues, "Provider name is missing")
	}

	if phone := cleaned.Get(model.FieldPhone); phone != "" {
		if formatted, ok := enrich.FormatPhone(phone); ok {
			cleaned[model.FieldPhone] = formatted
		} else {
			issues = append(issues, fmt.Sprintf("Invalid phone number: %s", phone))
		}
	}

	if spec := cleaned.Get(model.FieldSpecialty); spec != "" {
		if std, ok := mapSpecialty(spec); ok {
			cleaned[model.FieldSpecialty] = std
		}
	}

	if cleaned.Get(model.FieldLicense) == "" {
		issues = append(issues, "License number is missing")
	}

	score := 30
	if len(enriched) > 0 {
		score = 40
		issues = append(issues, "Used online data for: "+strings.Join(enriched, ", "))
	}

	return &model.CleaningResult{
		CleanedData:    cleaned,
		Issues:         issues,
		AccuracyScore:  score,
		EnrichedFields: enriched,
	}
}

// mapSpecialty resolves a colloquial specialty description to a standard
// discipline by substring match, case-insensitively.
func mapSpecialty(raw string) (string, bool) {
	lower := strings.ToLower(raw)
	for _, rule := range specialtyRules {
		if strings.Contains(lower, rule.keyword) {
			return rule.specialty, true
		}
	}
	return "", false
}

// normalizeName title-cases a provider name and normalizes the doctor
// prefix to "Dr. ".
func normalizeName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	lower := strings.ToLower(name)

	hasPrefix := false
	for _, p := range []string{"dr. ", "dr ", "doctor "} {
		if strings.HasPrefix(lower, p) {
			name = name[len(p):]
			hasPrefix = true
			break
		}
	}

	name = titleCaser.String(strings.ToLower(name))
	if hasPrefix {
		return "Dr. " + name
	}
	return name
}
