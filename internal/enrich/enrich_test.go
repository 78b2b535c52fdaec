package enrich

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/clearcare/provider-cli/internal/model"
)

// stubSearcher returns canned responses keyed by substring match on the
// query, and records every query it receives.
type stubSearcher struct {
	responses map[string]string
	fallback  string
	err       error
	queries   []string
}

func (s *stubSearcher) Search(_ context.Context, _, query string) (string, error) {
	s.queries = append(s.queries, query)
	if s.err != nil {
		return "", s.err
	}
	for sub, resp := range s.responses {
		if strings.Contains(query, sub) {
			return resp, nil
		}
	}
	return s.fallback, nil
}

func searchJSON(phone, email, address, source string) string {
	return fmt.Sprintf(`{"found_info":{"phone":%q,"email":%q,"address":%q,"website":"","verified_source":%q},"confidence":"high","search_summary":"found"}`,
		phone, email, address, source)
}

func newTestEnricher(s Searcher, opts ...Option) *Enricher {
	opts = append([]Option{WithLimiter(rate.NewLimiter(rate.Inf, 1))}, opts...)
	return New(s, opts...)
}

func incompleteRecord() model.ProviderRecord {
	return model.ProviderRecord{
		model.FieldName:      "Dr. Priya Nair",
		model.FieldSpecialty: "Cardiology",
		model.FieldCity:      "Kochi",
	}
}

func TestEnrich_CompleteRecordSkipsSearch(t *testing.T) {
	stub := &stubSearcher{}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), model.ProviderRecord{
		model.FieldPhone:   "9876543210",
		model.FieldEmail:   "dr@clinic.in",
		model.FieldAddress: "12 MG Road, Bengaluru 560001",
	})

	if len(stub.queries) != 0 {
		t.Errorf("issued %d queries, want 0", len(stub.queries))
	}
	if len(res.Fields) != 0 {
		t.Errorf("fields = %v, want empty", res.Fields)
	}
}

func TestEnrich_RecoversAndValidatesFields(t *testing.T) {
	stub := &stubSearcher{
		fallback: searchJSON("98765 43210", "priya@heartcare.in", "Heartcare Clinic, 4 Marine Drive, Kochi 682031", "heartcare.in"),
	}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())

	if got := res.Fields[model.FieldPhone]; got != "+91 98765 43210" {
		t.Errorf("phone = %q, want +91 98765 43210", got)
	}
	if got := res.Fields[model.FieldEmail]; got != "priya@heartcare.in" {
		t.Errorf("email = %q", got)
	}
	if got := res.Fields[model.FieldAddress]; !strings.Contains(got, "Marine Drive") {
		t.Errorf("address = %q", got)
	}
	if res.Source != "heartcare.in" {
		t.Errorf("source = %q, want heartcare.in", res.Source)
	}
	if len(stub.queries) != 1 {
		t.Errorf("issued %d queries, want 1 (early stop once all fields filled)", len(stub.queries))
	}
}

func TestEnrich_AtMostThreeQueries(t *testing.T) {
	stub := &stubSearcher{
		fallback: searchJSON("", "", "", ""),
	}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())

	if len(stub.queries) > 3 {
		t.Errorf("issued %d queries, want at most 3", len(stub.queries))
	}
	if res.Queried != len(stub.queries) {
		t.Errorf("Queried = %d, want %d", res.Queried, len(stub.queries))
	}
	if len(res.Fields) != 0 {
		t.Errorf("fields = %v, want empty", res.Fields)
	}
}

func TestEnrich_FirstFoundWins(t *testing.T) {
	stub := &stubSearcher{
		responses: map[string]string{
			"contact details phone": searchJSON("9876543210", "", "", "first-source.in"),
			"clinic":                searchJSON("1111111111", "other@clinic.in", "Heartcare Clinic, 4 Marine Drive, Kochi", "second-source.in"),
		},
		fallback: searchJSON("", "", "", ""),
	}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())

	if got := res.Fields[model.FieldPhone]; got != "+91 98765 43210" {
		t.Errorf("phone = %q, first query's value should win", got)
	}
	if got := res.Fields[model.FieldEmail]; got != "other@clinic.in" {
		t.Errorf("email = %q, second query should fill the gap", got)
	}
	if res.Source != "first-source.in" {
		t.Errorf("source = %q, want first-source.in", res.Source)
	}
}

func TestEnrich_RejectsInvalidRecoveredValues(t *testing.T) {
	stub := &stubSearcher{
		fallback: searchJSON("12345", "not-an-email", "short", ""),
	}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())
	if len(res.Fields) != 0 {
		t.Errorf("fields = %v, want all recovered values rejected", res.Fields)
	}
}

func TestEnrich_SearchErrorDegradesGracefully(t *testing.T) {
	stub := &stubSearcher{err: errors.New("upstream 503")}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())
	if len(res.Fields) != 0 {
		t.Errorf("fields = %v, want empty on search failure", res.Fields)
	}
}

func TestEnrich_MalformedResponseDegradesGracefully(t *testing.T) {
	stub := &stubSearcher{fallback: "I could not find structured data, sorry."}
	e := newTestEnricher(stub)

	res := e.Enrich(context.Background(), incompleteRecord())
	if len(res.Fields) != 0 {
		t.Errorf("fields = %v, want empty on unparseable response", res.Fields)
	}
}

func TestEnrich_CachesByQueryText(t *testing.T) {
	stub := &stubSearcher{
		fallback: searchJSON("9876543210", "priya@heartcare.in", "Heartcare Clinic, 4 Marine Drive, Kochi", ""),
	}
	e := newTestEnricher(stub)

	rec := incompleteRecord()
	e.Enrich(context.Background(), rec)
	first := len(stub.queries)

	e.Enrich(context.Background(), rec)
	if len(stub.queries) != first {
		t.Errorf("second enrichment issued %d new searches, want 0 (cache hit)", len(stub.queries)-first)
	}
}

func TestEnrich_NeverOverwritesUsablePhone(t *testing.T) {
	stub := &stubSearcher{
		fallback: searchJSON("1111111111", "found@clinic.in", "Heartcare Clinic, 4 Marine Drive, Kochi", ""),
	}
	e := newTestEnricher(stub)

	rec := incompleteRecord()
	rec[model.FieldPhone] = "9876543210"

	res := e.Enrich(context.Background(), rec)
	if _, ok := res.Fields[model.FieldPhone]; ok {
		t.Error("enrichment proposed a phone for a record that already has a usable one")
	}
}

func TestBuildQueries_SkipsMissingInputs(t *testing.T) {
	qs := buildQueries(model.ProviderRecord{model.FieldName: "Dr. Priya Nair"})
	if len(qs) != 1 {
		t.Fatalf("got %d queries, want only the directory-profile query: %v", len(qs), qs)
	}
	if !strings.Contains(qs[0], "directory profile") {
		t.Errorf("query = %q", qs[0])
	}

	if qs := buildQueries(model.ProviderRecord{}); qs != nil {
		t.Errorf("nameless record should yield no queries, got %v", qs)
	}
}
