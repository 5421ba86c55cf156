package prediction

import (
	"fmt"
	"strings"

	"soilsense/internal/ml/profile"
)

// Describe renders a one-sentence characterization of a cluster from its profile means.
// The nitrogen rule always yields a phrase, so the sentence is never empty.
func Describe(clusterID int, p profile.Profile, policy Policy) string {
	phrases := make([]string, 0, len(policy.Description))
	for _, t := range policy.Description {
		v, ok := p.Characteristics[t.Feature]
		if !ok {
			continue
		}
		if phrase := t.Phrase(v); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}

	if len(phrases) == 0 {
		return fmt.Sprintf("Cluster %d has no distinctive soil characteristics.", clusterID)
	}
	return fmt.Sprintf("Cluster %d has soil characteristics with %s.", clusterID, strings.Join(phrases, ", "))
}
