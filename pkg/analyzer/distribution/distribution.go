// Package distribution buckets pupils into performance bands and derives
// per-exam distribution summaries and band-to-band movement.
package distribution

import (
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
	"github.com/panbanda/gradelens/pkg/stats"
)

// Risk labels.
const (
	RiskHighRisk = "high_risk"
	RiskWatch    = "watch"
	RiskStrong   = "strong"
	RiskStable   = "stable"
)

// Middle-layer labels.
const (
	MiddleCollapse = "collapse"
	MiddleLift     = "lift"
	MiddleBalanced = "balanced"
)

// Config holds the label cut-offs, all in percentage points except the
// skew values.
type Config struct {
	HighRiskWeak  float64 `json:"high_risk_weak" koanf:"high_risk_weak" toml:"high_risk_weak"`
	HighRiskSkew  float64 `json:"high_risk_skew" koanf:"high_risk_skew" toml:"high_risk_skew"`
	WatchWeak     float64 `json:"watch_weak" koanf:"watch_weak" toml:"watch_weak"`
	WatchSkew     float64 `json:"watch_skew" koanf:"watch_skew" toml:"watch_skew"`
	StrongElite   float64 `json:"strong_elite" koanf:"strong_elite" toml:"strong_elite"`
	StrongWeakMax float64 `json:"strong_weak_max" koanf:"strong_weak_max" toml:"strong_weak_max"`
	CollapseGap   float64 `json:"collapse_gap" koanf:"collapse_gap" toml:"collapse_gap"`
	LiftGap       float64 `json:"lift_gap" koanf:"lift_gap" toml:"lift_gap"`
	SkewThreshold float64 `json:"skew_threshold" koanf:"skew_threshold" toml:"skew_threshold"`
}

// DefaultConfig returns the default label cut-offs.
func DefaultConfig() Config {
	return Config{
		HighRiskWeak:  35,
		HighRiskSkew:  -0.45,
		WatchWeak:     20,
		WatchSkew:     -0.20,
		StrongElite:   20,
		StrongWeakMax: 12,
		CollapseGap:   15,
		LiftGap:       -10,
		SkewThreshold: stats.DefaultSkewThreshold,
	}
}

// Bands counts pupils per band for every exam present in percentages.
// Every band is listed, including empty ones. Output is ordered by exam id.
func Bands(percentages []models.PupilPercentage, bands classify.Bands) []models.BandDistribution {
	counts := make(map[int64]map[classify.Band]int)
	for _, p := range percentages {
		c, ok := counts[p.ExamID]
		if !ok {
			c = make(map[classify.Band]int, len(classify.AllBands))
			counts[p.ExamID] = c
		}
		c[bands.Classify(p.Percentage)]++
	}

	out := make([]models.BandDistribution, 0, len(counts))
	for examID, c := range counts {
		n := 0
		for _, v := range c {
			n += v
		}
		d := models.BandDistribution{ExamID: examID, N: n, Bands: make([]models.BandCount, 0, len(classify.AllBands))}
		for _, b := range classify.AllBands {
			d.Bands = append(d.Bands, models.BandCount{
				Band:  string(b),
				Count: c[b],
				Share: share(c[b], n),
			})
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamID < out[j].ExamID })
	return out
}

func share(count, n int) float64 {
	if n <= 0 {
		return 0
	}
	return float64(count) / float64(n) * 100
}

// Intelligence summarizes each exam's distribution in canonical order.
// Exams without a distribution are skipped. Share deltas compare with the
// exam immediately before in order and are nil when that exam has no data.
func Intelligence(order []int64, distributions []models.BandDistribution, percentages []models.PupilPercentage, cfg Config) []models.ExamIntelligence {
	byExam := make(map[int64]models.BandDistribution, len(distributions))
	for _, d := range distributions {
		byExam[d.ExamID] = d
	}
	values := make(map[int64][]float64)
	for _, p := range percentages {
		values[p.ExamID] = append(values[p.ExamID], p.Percentage)
	}

	var out []models.ExamIntelligence
	for i, examID := range order {
		d, ok := byExam[examID]
		if !ok {
			continue
		}
		weak := d.Share(string(classify.BandWeak))
		lower := d.Share(string(classify.BandLower))
		middle := d.Share(string(classify.BandMiddle))
		elite := d.Share(string(classify.BandElite))

		intel := models.ExamIntelligence{
			ExamID:            examID,
			N:                 d.N,
			WeakCount:         d.Count(string(classify.BandWeak)),
			WeakShare:         weak,
			MiddleLayersShare: lower + middle,
			EliteShare:        elite,
			MiddleLabel:       middleLabel(lower, middle, cfg),
		}
		if s, ok := stats.Summarize(values[examID]); ok {
			intel.Skew = s.Skew
		}
		intel.SkewDirection = string(stats.SkewDirection(intel.Skew, cfg.SkewThreshold))
		intel.RiskLabel = riskLabel(weak, elite, intel.Skew, cfg)

		if i > 0 {
			if prev, ok := byExam[order[i-1]]; ok {
				intel.WeakShareDelta = models.Float(weak - prev.Share(string(classify.BandWeak)))
				intel.EliteShareDelta = models.Float(elite - prev.Share(string(classify.BandElite)))
			}
		}
		out = append(out, intel)
	}
	return out
}

func riskLabel(weak, elite float64, skew *float64, cfg Config) string {
	skewBelow := func(limit float64) bool { return skew != nil && *skew <= limit }
	switch {
	case weak >= cfg.HighRiskWeak || skewBelow(cfg.HighRiskSkew):
		return RiskHighRisk
	case weak >= cfg.WatchWeak || skewBelow(cfg.WatchSkew):
		return RiskWatch
	case elite >= cfg.StrongElite && weak <= cfg.StrongWeakMax:
		return RiskStrong
	default:
		return RiskStable
	}
}

func middleLabel(lower, middle float64, cfg Config) string {
	gap := lower - middle
	switch {
	case gap >= cfg.CollapseGap:
		return MiddleCollapse
	case gap <= cfg.LiftGap:
		return MiddleLift
	default:
		return MiddleBalanced
	}
}
