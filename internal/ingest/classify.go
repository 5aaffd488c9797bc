package ingest

import (
	"strings"

	"github.com/clinsim-ai/clinsim/internal/domain"
)

// Keyword patterns for chunk classification. Contraindications are checked
// first: a passage warning against treatment outranks the softer exception
// phrasing it often also contains.
var (
	contraindicationKeywords = []string{
		"contraindicated", "do not use", "should not", "must not",
		"avoid", "contraindication", "prohibited",
	}
	exceptionKeywords = []string{
		"however", "exception", "in contrast", "alternatively", "but",
		"special case", "unique scenario",
	}
	specialPopulationKeywords = []string{
		"pregnancy", "pediatric", "geriatric", "renal impairment",
		"hepatic impairment", "dialysis", "elderly", "children",
	}
)

// Classify tags a chunk's content with its clinical risk type based on
// keyword patterns.
func Classify(content string) domain.ChunkType {
	lower := strings.ToLower(content)

	for _, kw := range contraindicationKeywords {
		if strings.Contains(lower, kw) {
			return domain.ChunkTypeContraindication
		}
	}

	for _, kw := range exceptionKeywords {
		if strings.Contains(lower, kw) {
			return domain.ChunkTypeException
		}
	}

	for _, kw := range specialPopulationKeywords {
		if strings.Contains(lower, kw) {
			return domain.ChunkTypeSpecialPopulation
		}
	}

	return domain.ChunkTypeStandard
}
