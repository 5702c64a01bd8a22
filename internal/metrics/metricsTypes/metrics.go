package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
	Flush()
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_StakeCreated       = "stake_created"
	Metric_Incr_StakeWithdrawn     = "stake_withdrawn"
	Metric_Incr_StakeRewardClaimed = "stake_reward_claimed"
	Metric_Incr_VestingClaimed     = "vesting_claimed"
	Metric_Incr_ClaimRejected      = "claim_rejected"
	Metric_Incr_PurchaseRecorded   = "purchase_recorded"
	Metric_Incr_UserCreated        = "user_created"

	Metric_Timing_ClaimDuration = "claim_duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_StakeCreated,
			Labels: []string{"pool_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_StakeWithdrawn,
			Labels: []string{"pool_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_StakeRewardClaimed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_VestingClaimed,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_ClaimRejected,
			Labels: []string{"kind", "reason"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_PurchaseRecorded,
			Labels: []string{"presale_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_UserCreated,
			Labels: []string{},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_ClaimDuration,
			Labels: []string{"kind"},
		},
	},
}
