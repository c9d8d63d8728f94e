package extract

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/pactex/pactex/internal/retrieval"
)

// snippetLimit caps how much of each retrieved example is quoted in the prompt.
const snippetLimit = 800

const promptInstructions = `You are an AI assistant specialized in meticulously analyzing legal contract texts. Your primary goal is to extract specific pieces of information from the provided "Primary Contract Text" and structure this information into a precise JSON output.

Instructions for extraction:

1. Source of information: extract information exclusively from the "Primary Contract Text" below. Do NOT use information from "Similar Contract Examples" to fill in values; those examples are for contextual understanding of phrasing and typical data formats ONLY.
2. JSON output: you MUST respond with a valid JSON object as specified. Ensure all keys are present.
3. Missing information: if a piece of information cannot be found or confidently extracted from the "Primary Contract Text", use the JSON value null for that field. Do not invent or guess information.
4. Field-specific instructions:
   - "agreement_value":
     Identify the primary monetary value of the agreement (e.g. monthly rent, total contract sum).
     Extract it as a numerical value (integer or float), removing currency symbols (e.g. $, £, €, Rs., PESOS, PHP) and thousands separators.
     Example: for "₱6,500.00" extract 6500.0; for "Ten Thousand Dollars" extract 10000.
     If no clear single agreement value is found, use null.
   - "agreement_start_date":
     Find the official commencement or start date of the agreement and format it as "YYYY-MM-DD".
     If the day is ambiguous but month and year are clear (e.g. "May 2007"), use the first day of the month ("2007-05-01").
     If the date is written out (e.g. "the twentieth day of May, two thousand seven"), convert it.
     If no start date is found, or it is too vague to format, use null.
   - "agreement_end_date":
     Find the official termination or end date of the agreement, formatted "YYYY-MM-DD", with the same parsing rules as the start date.
     If the agreement is open-ended or no end date is specified, use null.
   - "renewal_notice_days":
     Identify the number of days of advance notice required for contract renewal or termination, as an integer (for "15 days notice" extract 15).
     Convert months to days assuming 30 days per month: "two months notice" is 60, "one month" is 30.
     If no specific notice period is found, use null.
   - "party_one":
     Identify the first party to the agreement, typically the Lessor, Owner, Landlord, or Service Provider. Look for phrases like "between [Party One] and [Party Two]" or "[Party One] hereinafter called the 'LESSOR'".
     Extract the full name or company name as a string, including identifying titles that are part of the name (e.g. "Innovatech Solutions Inc.").
     If multiple individuals are listed (e.g. "John Doe and/or Jane Doe"), include both if concise, or the primary named entity.
   - "party_two":
     Identify the second party to the agreement, typically the Lessee, Tenant, Resident, or Client, with the same extraction rules as "party_one".

Required JSON output structure:

` + "```json" + `
{
  "agreement_value": <number_or_null>,
  "agreement_start_date": "YYYY-MM-DD_or_null",
  "agreement_end_date": "YYYY-MM-DD_or_null",
  "renewal_notice_days": <integer_or_null>,
  "party_one": "String_Name",
  "party_two": "String_Name"
}
` + "```" + `

Primary Contract Text:
---
`

// BuildPrompt assembles the extraction prompt: instructions, the contract
// text, and optionally the retrieved similar contracts as reference-only
// examples.
func BuildPrompt(primaryText string, contexts []retrieval.RetrievedContext) string {
	var sb strings.Builder
	sb.WriteString(promptInstructions)
	sb.WriteString(primaryText)
	sb.WriteString("\n---\n")

	if len(contexts) > 0 {
		sb.WriteString("\nSimilar Contract Examples (for context only, extract information only from Primary Contract Text above):\n")
		for i, ctx := range contexts {
			fmt.Fprintf(&sb, "\n--- Example %d (Source: %s, Distance: %s) ---\n", i+1, ctx.FileName, distanceLabel(ctx.Distance))
			sb.WriteString(snippet(ctx.Text))
			sb.WriteString("...\n")
		}
		sb.WriteString("---\n")
	}

	sb.WriteString("\nPlease extract the information from the 'Primary Contract Text' using the specified JSON format.")
	return sb.String()
}

func distanceLabel(d float32) string {
	if math.IsNaN(float64(d)) {
		return "N/A"
	}
	return fmt.Sprintf("%.4f", d)
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetLimit])
}

var (
	encoderOnce sync.Once
	encoder     *tiktoken.Tiktoken
)

// EstimateTokens counts prompt tokens with the cl100k_base encoding,
// falling back to the 4-chars-per-token heuristic when the encoding is
// unavailable (e.g. no network to fetch the BPE ranks).
func EstimateTokens(text string) int {
	encoderOnce.Do(func() {
		encoder, _ = tiktoken.GetEncoding("cl100k_base")
	})
	if encoder != nil {
		return len(encoder.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}
