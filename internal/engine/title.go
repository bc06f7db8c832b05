package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/civicroute/incidentd/internal/distance"
	"github.com/civicroute/incidentd/pkg/models"
)

// TitleConfig controls title derivation for new incidents.
type TitleConfig struct {
	// Suffix is appended to keyword-derived titles ("noise, roadwork complaints").
	Suffix string
	// Placeholder is the last-resort title when neither a usable summary
	// nor keywords exist.
	Placeholder string
	// StopWords are excluded from keyword-derived titles.
	StopWords []string
	// MinLen/MaxLen bound the rune length of a member summary for it to be
	// usable as a title.
	MinLen int
	MaxLen int
}

// generateTitle derives a human-readable title for a new incident and
// resolves collisions against every title visible in this pass. The caller
// must claim the returned title on the snapshot before generating the next
// one.
func generateTitle(members []*models.Complaint, centroid []float32, used map[string]bool, cfg TitleConfig) string {
	candidate := cfg.Placeholder

	if summary := leaderSummary(members, centroid, cfg); summary != "" {
		candidate = summary
	} else if kwTitle := keywordTitle(members, cfg); kwTitle != "" {
		candidate = kwTitle
	}

	// Collision avoidance: append a distinguishing keyword, then the
	// earliest date, then a numeric counter, until the title is unique.
	base := candidate
	retry := 0
	for used[candidate] {
		retry++
		extras := extraKeywords(members, base)
		if len(extras) >= retry {
			candidate = fmt.Sprintf("%s (%s)", base, extras[retry-1])
			continue
		}
		candidate = fmt.Sprintf("%s (%s)", base, earliestDate(members))
		if used[candidate] {
			candidate = fmt.Sprintf("%s #%d", base, retry)
		}
	}
	return candidate
}

// leaderSummary returns the core-request summary of the member closest to
// the cluster centroid, when its trimmed length is within bounds.
func leaderSummary(members []*models.Complaint, centroid []float32, cfg TitleConfig) string {
	if len(members) == 0 {
		return ""
	}
	leader := members[0]
	best := distance.Cosine(centroid, leader.Vector)
	for _, m := range members[1:] {
		if d := distance.Cosine(centroid, m.Vector); d < best {
			best = d
			leader = m
		}
	}

	summary := strings.TrimSpace(strings.ReplaceAll(leader.CoreRequest, "\n", " "))
	n := len([]rune(summary))
	if n < cfg.MinLen || n > cfg.MaxLen {
		return ""
	}
	return summary
}

// keywordTitle builds a title from the one or two most frequent non-stop
// keywords across the cluster.
func keywordTitle(members []*models.Complaint, cfg TitleConfig) string {
	stop := make(map[string]bool, len(cfg.StopWords))
	for _, w := range cfg.StopWords {
		stop[w] = true
	}

	var top []string
	for _, kw := range rankedKeywords(members) {
		if !stop[kw] {
			top = append(top, kw)
		}
		if len(top) == 2 {
			break
		}
	}

	switch len(top) {
	case 2:
		return fmt.Sprintf("%s, %s %s", top[0], top[1], cfg.Suffix)
	case 1:
		return fmt.Sprintf("%s %s", top[0], cfg.Suffix)
	default:
		return ""
	}
}

// extraKeywords returns frequent keywords not already present in the base
// title, for use as disambiguators.
func extraKeywords(members []*models.Complaint, base string) []string {
	ranked := rankedKeywords(members)
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	var extras []string
	for _, kw := range ranked {
		if !strings.Contains(base, kw) {
			extras = append(extras, kw)
		}
	}
	return extras
}

// rankedKeywords orders the cluster's keywords by frequency, then lexically.
func rankedKeywords(members []*models.Complaint) []string {
	counts := make(map[string]int)
	for _, m := range members {
		for kw := range m.Keywords {
			counts[kw]++
		}
	}
	ranked := make([]string, 0, len(counts))
	for kw := range counts {
		ranked = append(ranked, kw)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})
	return ranked
}

// earliestDate formats the earliest member receipt time as MM/DD.
func earliestDate(members []*models.Complaint) string {
	if len(members) == 0 {
		return "01/01"
	}
	earliest := members[0].ReceivedAtEpoch
	for _, m := range members[1:] {
		if m.ReceivedAtEpoch < earliest {
			earliest = m.ReceivedAtEpoch
		}
	}
	return time.UnixMilli(earliest).UTC().Format("01/02")
}
