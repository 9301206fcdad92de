package analysis

import (
	"time"

	"github.com/google/uuid"
)

// Strength of a correlation coefficient
type Strength string

const (
	StrengthStrong   Strength = "strong"
	StrengthModerate Strength = "moderate"
	StrengthWeak     Strength = "weak"
)

// Direction of a correlation coefficient
type Direction string

const (
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// Correlation is a Pearson coefficient with its two-sided p-value.
// Nil values mean "insufficient data", never zero correlation.
type Correlation struct {
	Coefficient *float64 `json:"coefficient"`
	PValue      *float64 `json:"p_value"`
	N           int      `json:"n"`
}

// Defined reports whether a coefficient could be computed
func (c Correlation) Defined() bool {
	return c.Coefficient != nil && c.PValue != nil
}

// LabelStats 라벨별 가격 변동 집계
type LabelStats struct {
	Label  string   `json:"label"`
	Count  int      `json:"count"`
	Mean   float64  `json:"avg_price_change_pct"`
	StdDev *float64 `json:"std_dev"` // sample std, nil when count < 2
}

// Distribution 라벨별 가격 변동 분포
type Distribution struct {
	Label  string   `json:"label"`
	Count  int      `json:"count"`
	Mean   float64  `json:"mean"`
	Median float64  `json:"median"`
	StdDev *float64 `json:"std_dev"`
	Min    float64  `json:"min"`
	Max    float64  `json:"max"`
}

// LagCorrelationResult is the correlation between sentiment and the price change lag positions earlier
type LagCorrelationResult struct {
	Lag         int      `json:"lag"`
	Coefficient *float64 `json:"coefficient"`
	PValue      *float64 `json:"p_value"`
	N           int      `json:"n"`
}

// LagAnalysis holds per-lag results, or Insufficient when the batch is too small
type LagAnalysis struct {
	Insufficient bool                   `json:"insufficient"`
	Reason       string                 `json:"reason,omitempty"`
	Results      []LagCorrelationResult `json:"results,omitempty"`
}

// Conclusion 최종 판정
type Conclusion string

const (
	ConclusionPredictive  Conclusion = "predictive"  // strong enough and significant
	ConclusionUnconfirmed Conclusion = "unconfirmed" // strong enough, not significant
	ConclusionWeak        Conclusion = "weak"
)

// Interpretation classifies the overall correlation
type Interpretation struct {
	Strength       Strength   `json:"strength"`
	Direction      Direction  `json:"direction"`
	Significant    bool       `json:"significant"`
	Recommended    bool       `json:"recommended"`
	Recommendation string     `json:"recommendation"`
	Conclusion     Conclusion `json:"conclusion"`
}

// Summary is the statistical appendix of a run
type Summary struct {
	RunID          *uuid.UUID      `json:"run_id,omitempty"` // set only on the result of a run
	DatasetSize    int             `json:"dataset_size"`
	DateRangeStart *time.Time      `json:"date_range_start,omitempty"`
	DateRangeEnd   *time.Time      `json:"date_range_end,omitempty"`
	Overall        Correlation     `json:"overall"`
	ByLabel        []LabelStats    `json:"by_label"`
	Distribution   []Distribution  `json:"distribution"`
	Lag            LagAnalysis     `json:"lag"`
	Interpretation *Interpretation `json:"interpretation,omitempty"` // nil when Overall is undefined
}
