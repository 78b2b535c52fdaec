package agent

import (
	"fmt"
	"strings"

	"github.com/clearcare/provider-cli/internal/model"
)

// cleaningSystemPrompt is constant across a whole run, which is what
// makes prompt caching on the system block pay off.
const cleaningSystemPrompt = `You are a healthcare data quality agent. You clean and standardize Indian medical provider records.

Cleaning rules:
- Phone numbers: format 10-digit Indian numbers as "+91 XXXXX XXXXX". Keep longer international numbers as "+" followed by digits. Flag numbers with fewer than 10 digits as invalid.
- Names: title case, with a "Dr." prefix for physicians. Strip stray whitespace and punctuation.
- Specialty: expand informal or colloquial descriptions to the standard discipline name, e.g. "heart doctor" becomes "Cardiology", "bone specialist" becomes "Orthopedics", "skin doctor" becomes "Dermatology", "eye specialist" becomes "Ophthalmology", "child doctor" becomes "Pediatrics", "brain doctor" becomes "Neurology".
- Addresses: keep what is verifiable; flag vague fragments like "near city mall" rather than inventing detail.
- License: never invent a license number. A missing or empty license is always listed as an issue.
- Never fabricate contact details. If a field cannot be cleaned confidently, keep the original value and record an issue.

Accuracy score rubric, applied to the cleaned record:
- Start from a base of 50.
- +10 if the name is present and well formed.
- +15 if the phone number is valid after formatting.
- +15 if the email is a valid address.
- +20 if the address is complete and specific.
- -20 if the record relies on online data that could not be verified.
- -30 if the record contains internal inconsistencies.
- Clamp the final score to the range 0 to 100.

Respond with ONLY a JSON object, no prose before or after:
{
  "cleaned_data": {"name": "", "phone": "", "email": "", "address": "", "specialty": "", "city": "", "license": ""},
  "issues": ["each problem found, one string per issue"],
  "accuracy_score": 0
}
Include every field from the input record in cleaned_data, cleaned or unchanged.`

// BuildPrompt renders the per-record user message. Enriched fields and
// their source are surfaced so the model can score online data honestly.
func BuildPrompt(rec model.ProviderRecord, enriched []string, source string) string {
	var b strings.Builder
	b.WriteString("Clean this provider record:\n\n")
	b.WriteString(rec.JSON())

	if len(enriched) > 0 {
		fmt.Fprintf(&b, "\n\nThe following fields were filled in from an online search and are not independently verified: %s.",
			strings.Join(enriched, ", "))
		if source != "" {
			fmt.Fprintf(&b, " Source: %s.", source)
		}
		b.WriteString(" Apply the unverified-online-data deduction when scoring unless the source is authoritative.")
	}
	return b.String()
}
