// Package language resolves which bilingual display blocks a question
// produces for a delivery language. The policy table is fixed:
//
//	en -> [EN]
//	es -> [ES]
//	fr -> [EN, FR]
//	ht -> [EN, HT]
//	anything else -> [EN]
//
// The same resolution backs delivery, inline review, and the results
// artifact; the branching lives here and nowhere else.
package language

import (
	"strings"

	"github.com/careprep/careprep/internal/model"
)

// ResolveBlocks returns the ordered display blocks for a question at the
// given language, rationale included. Missing variants or sub-fields
// resolve to empty strings and maps; display resolution never fails on
// incomplete data. The EN block in fr/ht always reflects variants.en,
// even when the English variant itself is incomplete.
func ResolveBlocks(q model.QuestionRecord, lang string) []model.DisplayBlock {
	en := q.Variants[model.LangEnglish]
	target := q.Variants[lang]

	switch lang {
	case model.LangEnglish, model.LangSpanish:
		return []model.DisplayBlock{block(strings.ToUpper(lang), target)}
	case model.LangFrench, model.LangHaitian:
		return []model.DisplayBlock{
			block("EN", en),
			block(strings.ToUpper(lang), target),
		}
	default:
		return []model.DisplayBlock{block("EN", en)}
	}
}

// DeliveryBlocks is ResolveBlocks without rationale fields, for showing a
// question during an in-progress attempt.
func DeliveryBlocks(q model.QuestionRecord, lang string) []model.DisplayBlock {
	blocks := ResolveBlocks(q, lang)
	for i := range blocks {
		blocks[i].WhyCorrect = ""
		blocks[i].PrometricSignal = ""
	}
	return blocks
}

func block(label string, v model.Variant) model.DisplayBlock {
	opts := v.Options
	if opts == nil {
		opts = map[string]string{}
	}
	return model.DisplayBlock{
		Label:           label,
		QuestionText:    v.QuestionText,
		Options:         opts,
		WhyCorrect:      v.Rationale.WhyCorrect,
		PrometricSignal: v.Rationale.PrometricSignal,
	}
}
