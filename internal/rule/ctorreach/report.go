package ctorreach

import (
	"github.com/phobologic/deadctor/internal/analysis"
	"github.com/phobologic/deadctor/internal/model"
)

// Report emits one diagnostic per fragment at its type-name location.
func Report(pass *analysis.Pass, ctors []*model.Member, frags []*model.Fragment) {
	phrase := singularPhrase
	if len(ctors) > 1 {
		phrase = pluralPhrase
	}
	for _, f := range frags {
		pass.Reportf(f.Name, phrase)
	}
}
