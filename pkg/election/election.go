// Package election implements the per-host alarm elector (spec §4.1,
// component C3): picking the single trace-id worth investigating among the
// candidate alarm groups for a host.
package election

import (
	"sort"
	"strings"

	"github.com/cluso-security/chaingraph/pkg/model"
)

// groupStats summarizes one trace's candidate alarms for the election
// rules of spec §4.1.
type groupStats struct {
	traceID             string
	uniqueAlarmNameCount int
	highCount            int
	medCount             int
	lowCount             int
}

// preferredOver reports whether s should be preferred over other under spec §4.1's
// ordering: maximize uniqueAlarmNameCount, then lexicographically maximize
// (highCount, medCount, lowCount), then fall back to the smaller trace id
// for a deterministic but arbitrary remaining tie-break.
func (s groupStats) preferredOver(other groupStats) bool {
	if s.uniqueAlarmNameCount != other.uniqueAlarmNameCount {
		return s.uniqueAlarmNameCount > other.uniqueAlarmNameCount
	}
	if s.highCount != other.highCount {
		return s.highCount > other.highCount
	}
	if s.medCount != other.medCount {
		return s.medCount > other.medCount
	}
	if s.lowCount != other.lowCount {
		return s.lowCount > other.lowCount
	}
	return s.traceID < other.traceID
}

func computeStats(traceID string, alarms []model.RawAlarm) groupStats {
	names := map[string]struct{}{}
	stats := groupStats{traceID: traceID}
	for _, a := range alarms {
		name := strings.TrimSpace(a.AlarmName)
		if name != "" {
			names[name] = struct{}{}
		}
		switch model.NormalizeSeverity(string(a.ThreatSeverity)) {
		case model.SeverityHigh:
			stats.highCount++
		case model.SeverityMedium:
			stats.medCount++
		default:
			stats.lowCount++
		}
	}
	stats.uniqueAlarmNameCount = len(names)
	return stats
}

// Elect picks the winning trace id from a host's candidate alarm groups
// (spec §4.1). Returns ok=false (ElectionFailed, spec §7) when every group
// is empty or the candidate map itself is empty.
func Elect(candidates map[string][]model.RawAlarm) (string, bool) {
	traceIDs := make([]string, 0, len(candidates))
	for t := range candidates {
		traceIDs = append(traceIDs, t)
	}
	sort.Strings(traceIDs)

	var nonEmpty []string
	for _, t := range traceIDs {
		if len(candidates[t]) > 0 {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return "", false
	}
	if len(nonEmpty) == 1 {
		return nonEmpty[0], true
	}

	var best groupStats
	for i, t := range nonEmpty {
		s := computeStats(t, candidates[t])
		if i == 0 || s.preferredOver(best) {
			best = s
		}
	}
	return best.traceID, true
}
