package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
	"github.com/shopspring/decimal"
)

// LineItemSystemPrompt is the system prompt for phase 2 extraction
const LineItemSystemPrompt = `You list the individual charges in healthcare billing documents.

CRITICAL RULES:
1. Return ONLY a JSON array. No markdown, no commentary.
2. One element per charge line that appears in the text. Never invent lines.
3. Skip subtotal, total, balance and payment summary lines.
4. Amounts are plain numbers. Use null for amounts the line does not state.`

const lineItemSchema = `[{"date_of_service": "", "procedure_code": "", "units": "", "billed_amount": 0, "allowed_amount": null, "paid_amount": null, "provider": "", "description": ""}]`

// lineItemHints are the per-type instructions of the line-item prompt
var lineItemHints = map[model.DocType]string{
	model.DocMedicalBill: `This is an itemized medical bill. billed_amount is the provider charge for the line.
procedure_code is the CPT or HCPCS code when printed. units is the quantity or units column.`,
	model.DocPharmacyReceipt: `This is a pharmacy receipt. Each prescription fill is one line. description is the medication
name and strength, procedure_code is the NDC when printed, units is the quantity dispensed,
billed_amount is the retail or charged price, paid_amount is what insurance paid.`,
	model.DocDentalBill: `This is a dental statement. procedure_code is the CDT code (D followed by four digits).
Include the tooth number in description when printed.`,
	model.DocInsuranceEOB: `This is an insurance explanation of benefits or claim history. Each service line is one element.
billed_amount is the amount the provider billed, allowed_amount is the plan allowed amount,
paid_amount is what the plan paid. provider is the provider named for the claim.`,
	model.DocFSAClaims: `This is an FSA/HSA claim or reimbursement history. Each claim is one line.
billed_amount is the claimed expense amount, paid_amount is the reimbursed amount.
description is the merchant or service description.`,
	model.DocGeneric: `The document type is unknown. List only lines that clearly show a date and a charged amount.`,
}

// LineItemPrompt builds the phase 2 prompt for a document of the given type
func LineItemPrompt(docType model.DocType, text string, facts model.Facts) string {
	hint, ok := lineItemHints[docType]
	if !ok {
		hint = lineItemHints[model.DocGeneric]
	}

	var b strings.Builder
	b.WriteString(hint)
	b.WriteString("\n\nReturn a JSON array shaped like:\n")
	b.WriteString(lineItemSchema)
	b.WriteByte('\n')

	if facts != nil {
		if p := facts.Get(model.FactProviderName); p != "" {
			fmt.Fprintf(&b, "\nWhen a line does not name a provider, use %q.\n", p)
		}
		if d := facts.Get(model.FactServiceDate); d != "" {
			fmt.Fprintf(&b, "When a line does not show a date, use %q.\n", d)
		}
	}

	b.WriteString("\nDocument:\n")
	b.WriteString(truncate(text, maxPromptChars))
	return b.String()
}

type rawLineItem struct {
	DateOfService string          `json:"date_of_service"`
	ProcedureCode json.RawMessage `json:"procedure_code"`
	Units         json.RawMessage `json:"units"`
	BilledAmount  json.RawMessage `json:"billed_amount"`
	AllowedAmount json.RawMessage `json:"allowed_amount"`
	PaidAmount    json.RawMessage `json:"paid_amount"`
	Provider      string          `json:"provider"`
	Description   string          `json:"description"`
}

// ParseLineItems decodes a phase 2 response. It accepts a bare array or an
// object wrapping one under "line_items" or "items". Lines without a billed
// amount are dropped.
func ParseLineItems(response string, doc *model.Document) ([]model.LineItem, error) {
	cleaned := CleanJSON(response)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON in line item response")
	}

	var rows []rawLineItem
	if cleaned[0] == '{' {
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
			return nil, fmt.Errorf("unmarshal line items: %w", err)
		}
		inner, ok := wrapper["line_items"]
		if !ok {
			inner, ok = wrapper["items"]
		}
		if !ok {
			return nil, fmt.Errorf("line item object has no line_items array")
		}
		cleaned = string(inner)
	}
	if err := json.Unmarshal([]byte(cleaned), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal line items: %w", err)
	}

	items := make([]model.LineItem, 0, len(rows))
	for _, r := range rows {
		billed, ok := rawAmount(r.BilledAmount)
		if !ok {
			continue
		}
		item := model.LineItem{
			DateOfService: normalize.Date(r.DateOfService),
			ProcedureCode: normalize.Code(rawString(r.ProcedureCode)),
			Units:         rawString(r.Units),
			BilledAmount:  billed,
			Provider:      strings.TrimSpace(r.Provider),
			Description:   strings.TrimSpace(r.Description),
		}
		if d, ok := rawAmount(r.AllowedAmount); ok {
			item.AllowedAmount = decimal.NewNullDecimal(d)
		}
		if d, ok := rawAmount(r.PaidAmount); ok {
			item.PaidAmount = decimal.NewNullDecimal(d)
		}
		items = append(items, stamp(item, doc))
	}
	return items, nil
}

// stamp fills document-derived fields
func stamp(item model.LineItem, doc *model.Document) model.LineItem {
	if doc == nil {
		return item
	}
	item.SourceDocumentID = doc.ID
	item.Kind = doc.Type.LineItemKind()
	item.PatientDOB = doc.Facts.Get(model.FactPatientDOB)
	if item.Provider == "" {
		item.Provider = doc.Facts.Get(model.FactProviderName)
	}
	if item.DateOfService == "" {
		item.DateOfService = doc.Facts.Get(model.FactServiceDate)
	}
	return item
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return decimal.NewFromFloat(f).String()
	}
	return ""
}

func rawAmount(raw json.RawMessage) (decimal.Decimal, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, false
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err == nil {
		return d, true
	}
	return normalize.Amount(rawString(raw))
}

var (
	rowDate    = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{2,4}|\d{1,2}-\d{1,2}-\d{4})\b`)
	rowAmount  = regexp.MustCompile(`\(?\$?\s?\d{1,3}(?:,\d{3})*\.\d{2}\)?|\(?\$?\s?\d+\.\d{2}\)?`)
	rowCode    = regexp.MustCompile(`\b(\d{5}|[A-V]\d{4}|D\d{4}|\d{4,5}-\d{3,4}-\d{1,2})\b`)
	rowUnits   = regexp.MustCompile(`(?i)\b(?:x|qty:?|units?:?)\s*(\d{1,3})\b`)
	rowSummary = regexp.MustCompile(`(?i)\b(?:sub)?total\b|\bbalance\b|amount due|you owe|payment|adjustment|previous|deductible`)
	rowTrim    = regexp.MustCompile(`[\s$|:;,\-]+`)
)

// HeuristicLineItems parses lines holding a date and at least one money
// amount into line items. Summary lines (totals, balances, payments) are skipped.
// For EOB documents the second and third amounts are read as allowed and paid.
func HeuristicLineItems(text string, doc *model.Document) []model.LineItem {
	var items []model.LineItem

	kind := model.KindReceipt
	if doc != nil {
		kind = doc.Type.LineItemKind()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || rowSummary.MatchString(line) {
			continue
		}
		dateLoc := rowDate.FindStringIndex(line)
		if dateLoc == nil {
			continue
		}
		date := line[dateLoc[0]:dateLoc[1]]
		rest := line[:dateLoc[0]] + " " + line[dateLoc[1]:]

		amountLocs := rowAmount.FindAllStringIndex(rest, -1)
		if len(amountLocs) == 0 {
			continue
		}
		var amounts []decimal.Decimal
		for _, loc := range amountLocs {
			if d, ok := normalize.Amount(rest[loc[0]:loc[1]]); ok {
				amounts = append(amounts, d)
			}
		}
		if len(amounts) == 0 {
			continue
		}
		desc := rest[:amountLocs[0][0]]

		item := model.LineItem{
			DateOfService: normalize.Date(date),
			BilledAmount:  amounts[0],
		}

		if m := rowUnits.FindStringSubmatchIndex(desc); m != nil {
			item.Units = desc[m[2]:m[3]]
			desc = desc[:m[0]] + " " + desc[m[1]:]
		}
		if m := rowCode.FindStringIndex(desc); m != nil {
			item.ProcedureCode = normalize.Code(desc[m[0]:m[1]])
			desc = desc[:m[0]] + " " + desc[m[1]:]
		}
		item.Description = strings.Join(strings.Fields(rowTrim.ReplaceAllString(" "+desc+" ", " ")), " ")

		if kind == model.KindInsurance && len(amounts) >= 2 {
			item.AllowedAmount = decimal.NewNullDecimal(amounts[1])
			if len(amounts) >= 3 {
				item.PaidAmount = decimal.NewNullDecimal(amounts[2])
			}
		}
		if kind == model.KindFSA && len(amounts) >= 2 {
			item.PaidAmount = decimal.NewNullDecimal(amounts[1])
		}

		items = append(items, stamp(item, doc))
	}
	return items
}
