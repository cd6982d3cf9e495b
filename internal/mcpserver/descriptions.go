package mcpserver

// Tool descriptions with interpretation guidance for LLMs.
// Each description explains what the tool does, when to use it,
// how to interpret results, and key thresholds.

func describeAggregate() string {
	return `Computes descriptive statistics of exam scores per subject and exam, per exam overall, and per pupil.

USE WHEN:
- Getting a first picture of how a class performed
- Checking averages, spread and pass rates before deeper analysis
- Comparing subjects within one exam

INTERPRETING RESULTS:
- avg and median are in points of the subject maximum (default 40)
- pass_rate is a percentage (0-100) of scores at or above the pass threshold
- sd and skew are null with fewer than two scores
- skew = (mean - median) / sd; below -0.35 means a tail of weak scores
- Pupil percentage = total points / total maximum * 100 over subjects taken

METRICS RETURNED:
- subjects: n, avg, median, sd, skew, min, max, pass_n, pass_rate per (subject, exam)
- overall: the same per exam with subject_id null
- pupils: total_score, total_max, percentage, subjects_taken, subjects_passed`
}

func describeBands() string {
	return `Buckets pupils into performance bands per exam and labels the shape of the distribution.

USE WHEN:
- Asking how many pupils are weak, average or top performers
- Checking whether the weak group is growing or shrinking
- Tracking pupils moving between bands from one exam to the next

INTERPRETING RESULTS:
- Bands over percentage of maximum: weak < 46, lower 46-66, middle 66-86, elite >= 86
- risk_label high_risk: weak share >= 35% or strongly negative skew
- risk_label strong: elite share >= 20% with weak share <= 12%
- middle_label collapse: weak share exceeds the middle layers by 15+ points
- Migration counts only pupils present in both exams; up + down + stayed = common

METRICS RETURNED:
- bands: count and share per band for every exam
- intelligence: weak/middle/elite shares, skew, risk and middle labels, deltas vs previous exam
- migration: common pupils, up/down/stayed counts and band-to-band flows`
}

func describeMovers() string {
	return `Lists the subjects whose average improved or declined the most between the latest exam and the one before it.

USE WHEN:
- Finding which subjects changed since the last exam
- Preparing talking points for a staff or parent meeting

INTERPRETING RESULTS:
- delta = current average - previous average, in points
- Only subjects with scores in both exams are compared
- Improvements are sorted by largest gain, declines by largest drop
- Ties are broken by subject id

METRICS RETURNED:
- exam_id and previous_exam_id
- improvements and declines: subject_id, previous, current, delta`
}

func describeSignals() string {
	return `Scores subjects (and optionally pupils) for risk and momentum on the latest exam.

USE WHEN:
- Deciding where to intervene first
- Spotting subjects that are recovering and should be reinforced

INTERPRETING RESULTS:
- Risk grows with an average below the pass threshold, a low pass rate and falling trends
- Momentum grows with rising averages and pass rates and sustained high pass rates
- Only subjects with risk >= 3 or momentum >= 2 are listed
- reasons explain which rules contributed to the score
- Without a previous exam, trend rules are skipped and deltas are null

METRICS RETURNED:
- risk and momentum: subject_id, score, reasons, avg, pass_rate, avg_delta, pass_rate_delta
- pupil_risk and pupil_momentum when include_pupils is set`
}

func describeCohorts() string {
	return `Compares the two pupil cohorts (group 1 and group 2) per subject and exam.

USE WHEN:
- Comparing parallel groups taught by different teachers
- Checking whether a split class performs evenly

INTERPRETING RESULTS:
- delta = cohort 2 average - cohort 1 average
- A null cohort means the cohort has no scores for that subject and exam, not zero
- Pupils without a cohort are left out of this comparison only

METRICS RETURNED:
- subject_id, exam_id, cohort1 and cohort2 (n, avg, pass_rate), delta`
}

func describeRank() string {
	return `Ranks the pupils of one exam by total points.

USE WHEN:
- Producing a class ranking for an exam
- Finding the top or bottom performers

INTERPRETING RESULTS:
- Order: total points descending, then percentage descending, then pupil id
- position is unique; rank is shared by pupils tied on both totals (1, 2, 2, 4)
- Missing scores add neither points nor maximum

METRICS RETURNED:
- exam_id and pupils: position, rank, pupil_id, total, secondary, percentage`
}

func describeReport() string {
	return `Runs every analysis at once and returns a complete class report.

USE WHEN:
- Preparing an end-of-term review
- A single call should answer several of the other tools' questions

INTERPRETING RESULTS:
- meta.fingerprint identifies the exact input; identical input gives identical reports
- meta.duplicates counts repeated (pupil, subject, exam) records; they are kept in all statistics
- See the individual tools for the meaning of each section

METRICS RETURNED:
- meta, subjects, overall, average_deltas, pass_rate_deltas, pupils
- bands, intelligence, migration, movers
- subject_risk, subject_momentum, pupil_risk, pupil_momentum
- cohorts, rankings`
}
