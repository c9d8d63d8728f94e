package extract

import (
	"context"
	"strings"
	"testing"

	"github.com/pactex/pactex/internal/retrieval"
)

// mockGenerator implements Generator for testing.
type mockGenerator struct {
	response   string
	lastPrompt string
	calls      int
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string) string {
	m.calls++
	m.lastPrompt = prompt
	return m.response
}

// mockRetriever implements ContextRetriever for testing.
type mockRetriever struct {
	contexts []retrieval.RetrievedContext
	calls    int
}

func (m *mockRetriever) Retrieve(ctx context.Context, text string) []retrieval.RetrievedContext {
	m.calls++
	return m.contexts
}

const acmeContract = `This Rental Agreement is made between Acme Corp (the LESSOR)
and Jane Doe (the LESSEE). The monthly rent shall be ₱6,500.00. The term
commences on 20/05/2007 and ends on 19/05/2008. Either party may terminate
with 60 days written notice.`

func TestExtract_EndToEnd(t *testing.T) {
	gen := &mockGenerator{response: "```json\n" + `{
		"agreement_value": "₱6,500.00",
		"agreement_start_date": "20/05/2007",
		"agreement_end_date": "19/05/2008",
		"renewal_notice_days": "60 days",
		"party_one": "Acme Corp",
		"party_two": "Jane Doe"
	}` + "\n```"}
	ret := &mockRetriever{contexts: []retrieval.RetrievedContext{
		{ID: "doc_0_sample", FileName: "sample.txt", Text: "similar lease", Distance: 0.2},
	}}
	e := NewExtractor(gen, ret, nil)

	got := e.Extract(context.Background(), acmeContract, true)
	if got == nil {
		t.Fatal("Extract returned nil")
	}

	if got.AgreementValue == nil || *got.AgreementValue != 6500 {
		t.Errorf("AgreementValue = %v, want 6500", deref(got.AgreementValue))
	}
	if got.AgreementStartDate == nil || *got.AgreementStartDate != "2007-05-20" {
		t.Errorf("AgreementStartDate = %v, want 2007-05-20", deref(got.AgreementStartDate))
	}
	if got.AgreementEndDate == nil || *got.AgreementEndDate != "2008-05-19" {
		t.Errorf("AgreementEndDate = %v, want 2008-05-19", deref(got.AgreementEndDate))
	}
	if got.RenewalNoticeDays == nil || *got.RenewalNoticeDays != 60 {
		t.Errorf("RenewalNoticeDays = %v, want 60", deref(got.RenewalNoticeDays))
	}
	if got.PartyOne == nil || *got.PartyOne != "Acme Corp" {
		t.Errorf("PartyOne = %v, want Acme Corp", deref(got.PartyOne))
	}
	if got.PartyTwo == nil || *got.PartyTwo != "Jane Doe" {
		t.Errorf("PartyTwo = %v, want Jane Doe", deref(got.PartyTwo))
	}

	if ret.calls != 1 {
		t.Errorf("retriever called %d times, want 1", ret.calls)
	}
	if !strings.Contains(gen.lastPrompt, "similar lease") {
		t.Error("prompt missing retrieved context text")
	}
	if !strings.Contains(gen.lastPrompt, acmeContract) {
		t.Error("prompt missing primary contract text")
	}
}

func TestExtract_RAGDisabled(t *testing.T) {
	gen := &mockGenerator{response: `{"party_one": "Acme"}`}
	ret := &mockRetriever{}
	e := NewExtractor(gen, ret, nil)

	got := e.Extract(context.Background(), "some contract text", false)
	if got == nil {
		t.Fatal("Extract returned nil")
	}
	if ret.calls != 0 {
		t.Errorf("retriever called %d times, want 0 with RAG disabled", ret.calls)
	}
	if strings.Contains(gen.lastPrompt, "Similar Contract Examples") {
		t.Error("prompt should not contain examples section with RAG disabled")
	}
}

func TestExtract_EmptyInput(t *testing.T) {
	gen := &mockGenerator{response: `{"party_one": "Acme"}`}
	e := NewExtractor(gen, nil, nil)

	if got := e.Extract(context.Background(), "   ", true); got != nil {
		t.Errorf("got %+v, want nil for empty input", got)
	}
	if gen.calls != 0 {
		t.Errorf("generator called %d times, want 0 for empty input", gen.calls)
	}
}

func TestExtract_NoModelOutput(t *testing.T) {
	gen := &mockGenerator{response: ""}
	e := NewExtractor(gen, nil, nil)

	if got := e.Extract(context.Background(), "contract text", false); got != nil {
		t.Errorf("got %+v, want nil when model returns nothing", got)
	}
}

func TestExtract_UnparseableOutput(t *testing.T) {
	gen := &mockGenerator{response: "I am unable to help with that."}
	e := NewExtractor(gen, nil, nil)

	if got := e.Extract(context.Background(), "contract text", false); got != nil {
		t.Errorf("got %+v, want nil for unparseable output", got)
	}
}

// TestExtract_PartialFields verifies missing fields come back null while
// present ones are coerced.
func TestExtract_PartialFields(t *testing.T) {
	gen := &mockGenerator{response: `{"agreement_value": 1200, "party_one": "X Inc."}`}
	e := NewExtractor(gen, nil, nil)

	got := e.Extract(context.Background(), "contract text", false)
	if got == nil {
		t.Fatal("Extract returned nil")
	}
	if got.AgreementValue == nil || *got.AgreementValue != 1200 {
		t.Errorf("AgreementValue = %v, want 1200", deref(got.AgreementValue))
	}
	if got.AgreementStartDate != nil {
		t.Errorf("AgreementStartDate = %v, want nil", deref(got.AgreementStartDate))
	}
	if got.RenewalNoticeDays != nil {
		t.Errorf("RenewalNoticeDays = %v, want nil", deref(got.RenewalNoticeDays))
	}
	if got.PartyTwo != nil {
		t.Errorf("PartyTwo = %v, want nil", deref(got.PartyTwo))
	}
}

// TestExtract_EmptyRetrievalStillExtracts verifies an empty context set
// does not block extraction.
func TestExtract_EmptyRetrievalStillExtracts(t *testing.T) {
	gen := &mockGenerator{response: `{"party_one": "Acme"}`}
	ret := &mockRetriever{contexts: nil}
	e := NewExtractor(gen, ret, nil)

	got := e.Extract(context.Background(), "contract text", true)
	if got == nil {
		t.Fatal("Extract returned nil")
	}
	if got.PartyOne == nil || *got.PartyOne != "Acme" {
		t.Errorf("PartyOne = %v, want Acme", deref(got.PartyOne))
	}
}
