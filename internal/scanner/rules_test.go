package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spotscan/internal/models"
)

func TestRuleMACrossoverRSI_4hWinsOverBoth(t *testing.T) {
	tf2h := TFIndicators{PrevMM1: 9, PrevCenter: 10, MM1: 11, Center: 10, RSI: 50}
	tf4h := TFIndicators{PrevMM1: 9, PrevCenter: 10, MM1: 11, Center: 10, RSI: 50}
	r := ruleMACrossoverRSI(tf2h, tf4h, 35, 73)
	require.NotNil(t, r)
	assert.Equal(t, "4h", r.Timeframe)
	assert.Equal(t, 0.7, r.Confidence)
}

func TestRuleMACrossoverRSI_RejectsOutOfBandRSI(t *testing.T) {
	tf2h := TFIndicators{PrevMM1: 9, PrevCenter: 10, MM1: 11, Center: 10, RSI: 90}
	tf4h := TFIndicators{PrevMM1: 9, PrevCenter: 10, MM1: 11, Center: 10, RSI: 90}
	r := ruleMACrossoverRSI(tf2h, tf4h, 35, 73)
	assert.Nil(t, r)
}

func TestRuleMADistance_TriggersAboveThreshold(t *testing.T) {
	tf := TFIndicators{MM1: 110, Center: 100, MADistance: 0.10}
	r := ruleMADistance(tf, "4h", 0.03, 0.6)
	require.NotNil(t, r)
	assert.Equal(t, models.SignalBuy, r.Type)
}

func TestRuleMADistance_NoTriggerBelowThreshold(t *testing.T) {
	tf := TFIndicators{MM1: 101, Center: 100, MADistance: 0.01}
	r := ruleMADistance(tf, "2h", 0.02, 0.5)
	assert.Nil(t, r)
}

func TestRuleVolumeSpike_BucketsIntensity(t *testing.T) {
	tf := TFIndicators{MM1: 110, Center: 100}
	r := ruleVolumeSpike(tf, 6.0, 2.0)
	require.NotNil(t, r)
	assert.Equal(t, "R3_VOLUME_SPIKE_EXTREME", r.Rule)
	assert.Equal(t, models.SignalBuy, r.Type)
}

func TestRuleVolumeSpike_AmbiguousDirectionNoSignal(t *testing.T) {
	tf := TFIndicators{MM1: 100, Center: 100}
	r := ruleVolumeSpike(tf, 6.0, 2.0)
	assert.Nil(t, r)
}

func TestAggregateRules_PureBuy(t *testing.T) {
	agg := AggregateRules([]*RuleResult{
		{Type: models.SignalBuy, Confidence: 0.6},
		{Type: models.SignalBuy, Confidence: 0.7},
	})
	assert.Equal(t, models.SignalBuy, agg.Type)
	assert.True(t, agg.Strong) // 2 rules
	assert.InDelta(t, 0.65, agg.Confidence, 0.001)
}

func TestAggregateRules_CloseCallIsNeutral(t *testing.T) {
	agg := AggregateRules([]*RuleResult{
		{Type: models.SignalBuy, Confidence: 0.5},
		{Type: models.SignalSell, Confidence: 0.5},
	})
	assert.Equal(t, models.SignalType(""), agg.Type)
}

func TestAggregateRules_DominantSideWins(t *testing.T) {
	agg := AggregateRules([]*RuleResult{
		{Type: models.SignalBuy, Confidence: 1.0},
		{Type: models.SignalSell, Confidence: 0.5},
	})
	assert.Equal(t, models.SignalBuy, agg.Type)
}

func TestAggregateRules_NilRulesIgnored(t *testing.T) {
	agg := AggregateRules([]*RuleResult{nil, {Type: models.SignalBuy, Confidence: 0.5}, nil})
	assert.Equal(t, models.SignalBuy, agg.Type)
}
