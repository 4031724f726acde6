package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// DocumentID is the first 12 hex chars of sha256 over the canonical facts
// and the document type
func DocumentID(facts model.Facts, t model.DocType) string {
	sum := sha256.Sum256([]byte(facts.Canonical() + string(t)))
	return hex.EncodeToString(sum[:])[:12]
}

// DocumentLabel renders "<provider> · <date> · <type title>"
func DocumentLabel(facts model.Facts, t model.DocType) string {
	provider := facts.Get(model.FactProviderName)
	if provider == "" {
		provider = facts.Get(model.FactPharmacyName)
	}
	if provider == "" {
		provider = facts.Get(model.FactInsurerName)
	}
	if provider == "" {
		provider = "Unknown provider"
	}
	date := facts.Get(model.FactServiceDate)
	if date == "" {
		date = "undated"
	}
	return fmt.Sprintf("%s · %s · %s", provider, date, t.Title())
}

// enrich assigns identity from the document's facts. With no populated fact
// the facts hash is the same for every document of a type, so the raw text
// is hashed in as well.
func enrich(doc *model.Document) {
	doc.ID = DocumentID(doc.Facts, doc.Type)
	if len(doc.Facts.Populated()) == 0 {
		sum := sha256.Sum256([]byte(doc.Facts.Canonical() + string(doc.Type) + "\n" + doc.RawText))
		doc.ID = hex.EncodeToString(sum[:])[:12]
	}
	doc.Label = DocumentLabel(doc.Facts, doc.Type)
}
