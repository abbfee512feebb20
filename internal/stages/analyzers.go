package stages

import (
	"sort"
	"strings"
)

// Analyzer describes the checklist a specialized document type is reviewed against.
type Analyzer struct {
	DocumentType string
	Requirements []string
}

// Registry maps normalized document types to analyzers.
type Registry struct {
	byType map[string]Analyzer
}

// NewRegistry builds a registry from the given analyzers.
func NewRegistry(analyzers ...Analyzer) *Registry {
	r := &Registry{byType: make(map[string]Analyzer, len(analyzers))}
	for _, a := range analyzers {
		r.byType[NormalizeType(a.DocumentType)] = a
	}
	return r
}

// DefaultRegistry covers the document types with dedicated checklists.
func DefaultRegistry() *Registry {
	return NewRegistry(
		Analyzer{DocumentType: "contract", Requirements: []string{
			"identification of all parties",
			"clear description of obligations of each party",
			"price or consideration and payment terms",
			"term and termination conditions",
			"liability limitations and indemnities",
			"governing law and dispute resolution",
			"signatures and date",
		}},
		Analyzer{DocumentType: "lease", Requirements: []string{
			"identification of landlord and tenant",
			"description of the leased property",
			"rent amount, due date and adjustment mechanism",
			"security deposit and conditions for its return",
			"lease term, renewal and early termination",
			"maintenance and repair responsibilities",
			"permitted use and subletting rules",
		}},
		Analyzer{DocumentType: "employment", Requirements: []string{
			"identification of employer and employee",
			"job title and duties",
			"compensation and benefits",
			"working hours and place of work",
			"probation period",
			"notice period and termination grounds",
			"confidentiality and non-compete restrictions",
		}},
		Analyzer{DocumentType: "nda", Requirements: []string{
			"definition of confidential information",
			"exclusions from confidentiality",
			"permitted use and disclosure",
			"duration of the confidentiality obligation",
			"return or destruction of information",
			"remedies for breach",
		}},
		Analyzer{DocumentType: "power_of_attorney", Requirements: []string{
			"identification of principal and agent",
			"scope of granted powers",
			"limitations on the agent",
			"duration and revocation",
			"notarization or witnessing",
		}},
	)
}

// Lookup returns the analyzer for docType, if one is registered.
func (r *Registry) Lookup(docType string) (Analyzer, bool) {
	if r == nil {
		return Analyzer{}, false
	}
	a, ok := r.byType[NormalizeType(docType)]
	return a, ok
}

// Types lists registered document types in sorted order.
func (r *Registry) Types() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// NormalizeType lowercases docType and joins words with underscores.
func NormalizeType(docType string) string {
	fields := strings.FieldsFunc(strings.ToLower(docType), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}
