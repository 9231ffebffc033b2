package detect

import (
	"sort"

	"github.com/musselmanjoey/DingerStats/logging"
)

// Detection is a candidate confirmed by multiple templates agreeing on the
// same moment
type Detection struct {
	TimeSeconds         float64  `json:"time_seconds"`
	Score               float64  `json:"score"`
	SupportingTemplates []string `json:"supporting_templates"`
}

// Reconciler merges per-template candidate lists into consensus detections.
// A single template firing alone is usually commentary that happens to
// resemble the chime; the same moment flagged by several templates almost
// never is.
type Reconciler struct {
	toleranceSeconds float64
	minSupport       int
	logger           logging.Logger
}

// NewReconciler creates a reconciler requiring minSupport distinct
// templates to agree within toleranceSeconds.
func NewReconciler(toleranceSeconds float64, minSupport int) *Reconciler {
	return &Reconciler{
		toleranceSeconds: toleranceSeconds,
		minSupport:       minSupport,
		logger: logging.WithFields(logging.Fields{
			"component": "consensus_reconciler",
		}),
	}
}

// Reconcile flattens the per-template candidates, sorts them by time, and
// greedily clusters runs of candidates that all lie within the tolerance
// of the EARLIEST cluster member. A cluster whose distinct contributing
// templates reach the support minimum becomes a Detection represented by
// its highest-scoring member. Detections come back in time order.
func (r *Reconciler) Reconcile(perTemplate map[string][]Candidate) []Detection {
	var all []Candidate
	for _, candidates := range perTemplate {
		all = append(all, candidates...)
	}

	sort.Slice(all, func(a, b int) bool {
		if all[a].TimeSeconds != all[b].TimeSeconds {
			return all[a].TimeSeconds < all[b].TimeSeconds
		}
		return all[a].TemplateID < all[b].TemplateID
	})

	var detections []Detection
	clusters := 0

	i := 0
	for i < len(all) {
		j := i + 1
		for j < len(all) && all[j].TimeSeconds-all[i].TimeSeconds <= r.toleranceSeconds {
			j++
		}
		cluster := all[i:j]
		clusters++

		supportSet := make(map[string]struct{}, len(cluster))
		best := cluster[0]
		for _, c := range cluster {
			supportSet[c.TemplateID] = struct{}{}
			if c.Score > best.Score {
				best = c
			}
		}

		if len(supportSet) >= r.minSupport {
			supporting := make([]string, 0, len(supportSet))
			for id := range supportSet {
				supporting = append(supporting, id)
			}
			sort.Strings(supporting)

			detections = append(detections, Detection{
				TimeSeconds:         best.TimeSeconds,
				Score:               best.Score,
				SupportingTemplates: supporting,
			})
		}

		i = j
	}

	r.logger.Debug("consensus complete", logging.Fields{
		"candidates": len(all),
		"clusters":   clusters,
		"detections": len(detections),
		"tolerance":  r.toleranceSeconds,
		"support":    r.minSupport,
	})

	return detections
}
