package pipeline

import (
	"github.com/boobootoo2/medbilldozer-sub000/internal/classify"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// Route names the backends used for a document type
type Route struct {
	Extract   string // Fact extraction backend key, or "heuristic"
	LineItems string // Line-item backend key, or "heuristic"
}

// lineItemRoutes is the fixed type → line-item backend map
var lineItemRoutes = map[model.DocType]string{
	model.DocMedicalBill:     llm.KeyMedGemma,
	model.DocInsuranceEOB:    llm.KeyOpenAI,
	model.DocDentalBill:      llm.KeyMedGemma,
	model.DocPharmacyReceipt: classify.ExtractorHeuristic,
	model.DocFSAClaims:       classify.ExtractorHeuristic,
	model.DocGeneric:         classify.ExtractorHeuristic,
}

// Routes returns the route for t: configured overrides first, then the
// fixed tables
func Routes(t model.DocType, overrides model.RoutingConfig) Route {
	r := Route{
		Extract:   classify.DefaultExtractor(t),
		LineItems: classify.ExtractorHeuristic,
	}
	if li, ok := lineItemRoutes[t]; ok {
		r.LineItems = li
	}
	if v, ok := overrides.Extract[string(t)]; ok && v != "" {
		r.Extract = v
	}
	if v, ok := overrides.LineItems[string(t)]; ok && v != "" {
		r.LineItems = v
	}
	return r
}
