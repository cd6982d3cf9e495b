package compare

import (
	"fmt"
	"math"
	"sort"

	"github.com/panbanda/gradelens/pkg/classify"
	"github.com/panbanda/gradelens/pkg/models"
)

// SignalConfig holds the weights and cut-offs of the risk and momentum
// heuristics. These are tuning knobs, not statistical constants.
type SignalConfig struct {
	MinRisk           float64 `json:"min_risk" koanf:"min_risk" toml:"min_risk"`
	MinMomentum       float64 `json:"min_momentum" koanf:"min_momentum" toml:"min_momentum"`
	AvgBelowPassBase  float64 `json:"avg_below_pass_base" koanf:"avg_below_pass_base" toml:"avg_below_pass_base"`
	AvgBelowPassScale float64 `json:"avg_below_pass_scale" koanf:"avg_below_pass_scale" toml:"avg_below_pass_scale"`
	PassRateCritical  float64 `json:"pass_rate_critical" koanf:"pass_rate_critical" toml:"pass_rate_critical"`
	PassRateWatch     float64 `json:"pass_rate_watch" koanf:"pass_rate_watch" toml:"pass_rate_watch"`
	AvgDrop           float64 `json:"avg_drop" koanf:"avg_drop" toml:"avg_drop"`
	PassRateDrop      float64 `json:"pass_rate_drop" koanf:"pass_rate_drop" toml:"pass_rate_drop"`
	AvgRise           float64 `json:"avg_rise" koanf:"avg_rise" toml:"avg_rise"`
	PassRateRise      float64 `json:"pass_rate_rise" koanf:"pass_rate_rise" toml:"pass_rate_rise"`
	SustainedPassRate float64 `json:"sustained_pass_rate" koanf:"sustained_pass_rate" toml:"sustained_pass_rate"`
	TopN              int     `json:"top_n" koanf:"top_n" toml:"top_n"`
	Limit             int     `json:"limit" koanf:"limit" toml:"limit"`
}

// DefaultSignalConfig returns the calibrated defaults.
func DefaultSignalConfig() SignalConfig {
	return SignalConfig{
		MinRisk:           3.0,
		MinMomentum:       2.0,
		AvgBelowPassBase:  2.0,
		AvgBelowPassScale: 1.0,
		PassRateCritical:  60,
		PassRateWatch:     75,
		AvgDrop:           0.8,
		PassRateDrop:      5,
		AvgRise:           0.8,
		PassRateRise:      4,
		SustainedPassRate: 85,
		TopN:              DefaultTopN,
	}
}

// signalInput is the common shape scored by both heuristics.
type signalInput struct {
	avg           float64
	pass          float64
	passRate      float64
	avgDelta      *float64
	passRateDelta *float64
}

func riskScore(in signalInput, cfg SignalConfig) (float64, []string) {
	var score float64
	var reasons []string

	if in.pass > 0 && in.avg < in.pass {
		gap := (in.pass - in.avg) / in.pass * 100
		score += cfg.AvgBelowPassBase + cfg.AvgBelowPassScale*gap/10
		reasons = append(reasons, fmt.Sprintf("average %.1f below pass %.1f", in.avg, in.pass))
	}

	switch {
	case in.passRate < cfg.PassRateCritical:
		score += 2 + (cfg.PassRateCritical-in.passRate)/10
		reasons = append(reasons, fmt.Sprintf("pass rate %.0f%% below %.0f%%", in.passRate, cfg.PassRateCritical))
	case in.passRate < cfg.PassRateWatch:
		score += 1 + (cfg.PassRateWatch-in.passRate)/15
		reasons = append(reasons, fmt.Sprintf("pass rate %.0f%% below %.0f%%", in.passRate, cfg.PassRateWatch))
	}

	if in.avgDelta != nil && *in.avgDelta < -cfg.AvgDrop {
		score += 1 + math.Abs(*in.avgDelta)*0.5
		reasons = append(reasons, fmt.Sprintf("average fell %.1f", math.Abs(*in.avgDelta)))
	}
	if in.passRateDelta != nil && *in.passRateDelta < -cfg.PassRateDrop {
		score += 1 + math.Abs(*in.passRateDelta)/10
		reasons = append(reasons, fmt.Sprintf("pass rate fell %.1f points", math.Abs(*in.passRateDelta)))
	}
	return score, reasons
}

func momentumScore(in signalInput, cfg SignalConfig) (float64, []string) {
	var score float64
	var reasons []string

	if in.avgDelta != nil && *in.avgDelta > cfg.AvgRise {
		score += 1 + *in.avgDelta*0.5
		reasons = append(reasons, fmt.Sprintf("average rose %.1f", *in.avgDelta))
	}
	if in.passRateDelta != nil && *in.passRateDelta > cfg.PassRateRise {
		score += 1 + *in.passRateDelta/10
		reasons = append(reasons, fmt.Sprintf("pass rate rose %.1f points", *in.passRateDelta))
	}
	if in.passRate >= cfg.SustainedPassRate {
		score++
		reasons = append(reasons, fmt.Sprintf("pass rate %.0f%% at or above %.0f%%", in.passRate, cfg.SustainedPassRate))
	}
	return score, reasons
}

// SubjectSignals scores every subject of the latest exam for risk and
// momentum. previous may be empty, in which case no delta penalties or
// rewards apply. Risk signals are sorted by score descending, then pass
// rate ascending; momentum by score descending, then average delta
// descending. Subject id breaks remaining ties.
func SubjectSignals(latest, previous map[int64]models.AggregateStat, r classify.Resolver, cfg SignalConfig) (risk, momentum []models.SubjectSignal) {
	for id, cur := range latest {
		in := signalInput{
			avg:      cur.Avg,
			pass:     r.Tiers(id).Pass,
			passRate: cur.PassRate,
		}
		if prev, ok := previous[id]; ok {
			in.avgDelta = models.Float(cur.Avg - prev.Avg)
			in.passRateDelta = models.Float(cur.PassRate - prev.PassRate)
		}

		base := models.SubjectSignal{
			SubjectID:     id,
			Avg:           cur.Avg,
			PassRate:      cur.PassRate,
			AvgDelta:      in.avgDelta,
			PassRateDelta: in.passRateDelta,
		}
		if score, reasons := riskScore(in, cfg); score >= cfg.MinRisk {
			s := base
			s.Kind, s.Score, s.Reasons = models.SignalRisk, score, reasons
			risk = append(risk, s)
		}
		if score, reasons := momentumScore(in, cfg); score >= cfg.MinMomentum && score > 0 {
			s := base
			s.Kind, s.Score, s.Reasons = models.SignalMomentum, score, reasons
			momentum = append(momentum, s)
		}
	}

	sort.Slice(risk, func(i, j int) bool {
		a, b := risk[i], risk[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PassRate != b.PassRate {
			return a.PassRate < b.PassRate
		}
		return a.SubjectID < b.SubjectID
	})
	sort.Slice(momentum, func(i, j int) bool {
		a, b := momentum[i], momentum[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if da, db := value(a.AvgDelta), value(b.AvgDelta); da != db {
			return da > db
		}
		return a.SubjectID < b.SubjectID
	})
	return limitSubjects(risk, cfg.Limit), limitSubjects(momentum, cfg.Limit)
}

// PupilSignals applies the same heuristics to pupils, using the overall
// percentage against passPercent and the share of subjects passed as the
// pass rate.
func PupilSignals(latest, previous []models.PupilPercentage, passPercent float64, cfg SignalConfig) (risk, momentum []models.PupilSignal) {
	prevByPupil := make(map[int64]models.PupilPercentage, len(previous))
	for _, p := range previous {
		prevByPupil[p.PupilID] = p
	}

	for _, cur := range latest {
		in := signalInput{
			avg:      cur.Percentage,
			pass:     passPercent,
			passRate: cur.PassShare(),
		}
		if prev, ok := prevByPupil[cur.PupilID]; ok {
			in.avgDelta = models.Float(cur.Percentage - prev.Percentage)
			in.passRateDelta = models.Float(cur.PassShare() - prev.PassShare())
		}

		base := models.PupilSignal{
			PupilID:         cur.PupilID,
			Percentage:      cur.Percentage,
			PassShare:       cur.PassShare(),
			PercentageDelta: in.avgDelta,
			PassShareDelta:  in.passRateDelta,
		}
		if score, reasons := riskScore(in, cfg); score >= cfg.MinRisk {
			s := base
			s.Kind, s.Score, s.Reasons = models.SignalRisk, score, reasons
			risk = append(risk, s)
		}
		if score, reasons := momentumScore(in, cfg); score >= cfg.MinMomentum && score > 0 {
			s := base
			s.Kind, s.Score, s.Reasons = models.SignalMomentum, score, reasons
			momentum = append(momentum, s)
		}
	}

	sort.Slice(risk, func(i, j int) bool {
		a, b := risk[i], risk[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.PassShare != b.PassShare {
			return a.PassShare < b.PassShare
		}
		return a.PupilID < b.PupilID
	})
	sort.Slice(momentum, func(i, j int) bool {
		a, b := momentum[i], momentum[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if da, db := value(a.PercentageDelta), value(b.PercentageDelta); da != db {
			return da > db
		}
		return a.PupilID < b.PupilID
	})
	if cfg.Limit > 0 {
		if len(risk) > cfg.Limit {
			risk = risk[:cfg.Limit]
		}
		if len(momentum) > cfg.Limit {
			momentum = momentum[:cfg.Limit]
		}
	}
	return risk, momentum
}

func limitSubjects(s []models.SubjectSignal, limit int) []models.SubjectSignal {
	if limit > 0 && len(s) > limit {
		return s[:limit]
	}
	return s
}

// value dereferences v, treating nil as negative infinity for ordering.
func value(v *float64) float64 {
	if v == nil {
		return math.Inf(-1)
	}
	return *v
}
