package main

import (
	"github.com/voxloop/voxloop/pkg/classify"
	"github.com/voxloop/voxloop/pkg/schema"
)

// defaultAMDVocabulary is the out-of-the-box §4.3 keyword set for a
// French-language deployment. Operators needing another language supply
// their own via the same AMDVocabulary shape; wiring that from config is
// future work (see DESIGN.md).
func defaultAMDVocabulary() classify.AMDVocabulary {
	return classify.AMDVocabulary{
		Human: classify.NewKeywordClass([]string{
			"allo", "oui", "bonjour c'est moi", "qui est a l'appareil",
		}),
		Machine: classify.NewKeywordClass([]string{
			"vous etes bien sur la messagerie",
			"laissez un message",
			"repondeur",
			"apres le bip sonore",
			"boite vocale",
		}),
	}
}

func defaultIntentVocabulary() classify.IntentVocabulary {
	return classify.NewIntentVocabulary(map[schema.Intent][]string{
		schema.IntentAffirm:        {"oui", "d'accord", "tout a fait", "exactement"},
		schema.IntentInterested:    {"interesse", "dites moi en plus", "volontiers"},
		schema.IntentDeny:          {"non", "pas du tout"},
		schema.IntentNotInterested: {"pas interesse", "laissez moi tranquille", "ne plus appeler"},
		schema.IntentCallback:      {"rappelez moi", "pas maintenant", "plus tard"},
		schema.IntentObjection:     {"trop cher", "j'ai deja", "pas le temps"},
		schema.IntentQuestion:      {"c'est quoi", "pourquoi", "comment"},
		schema.IntentUnsure:        {"je ne sais pas", "peut etre"},
	})
}
