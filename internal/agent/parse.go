package agent

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/clearcare/provider-cli/internal/model"
)

// ErrSchema marks a response that parsed as JSON but does not fit the
// cleaning-result shape even after coercion.
var ErrSchema = eris.New("response does not match result schema")

// ValidateResult coerces a parsed model response into a CleaningResult.
// Models drift: scores arrive as floats or quoted strings, optional keys
// go missing. Missing keys get zero values and an out-of-range score is
// zeroed rather than rejected; only structurally wrong values (a score
// that is a list, issues that are an object) fail.
func ValidateResult(raw map[string]any) (*model.CleaningResult, error) {
	res := &model.CleaningResult{
		CleanedData: map[string]string{},
		Issues:      []string{},
	}

	if v, ok := raw["cleaned_data"]; ok && v != nil {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, eris.Wrapf(ErrSchema, "cleaned_data is %T, want object", v)
		}
		for k, fv := range m {
			res.CleanedData[k] = stringify(fv)
		}
	}

	if v, ok := raw["issues"]; ok && v != nil {
		list, ok := v.([]any)
		if !ok {
			return nil, eris.Wrapf(ErrSchema, "issues is %T, want array", v)
		}
		for _, item := range list {
			res.Issues = append(res.Issues, stringify(item))
		}
	}

	if v, ok := raw["accuracy_score"]; ok && v != nil {
		score, err := coerceScore(v)
		if err != nil {
			return nil, err
		}
		res.AccuracyScore = score
	}

	return res, nil
}

// coerceScore accepts the numeric spellings models actually produce.
// Values outside [0, 100] are clamped to 0: a nonsense score is treated
// as no score.
func coerceScore(v any) (int, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, eris.Wrapf(ErrSchema, "accuracy_score %q is not numeric", n)
		}
		f = parsed
	default:
		return 0, eris.Wrapf(ErrSchema, "accuracy_score is %T, want number", v)
	}

	score := int(f)
	if score < 0 || score > 100 {
		return 0, nil
	}
	return score, nil
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
