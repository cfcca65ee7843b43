package hash

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/opcsub/types"
)

func testConfig() types.SubscriptionConfig {
	return types.SubscriptionConfig{
		Options: &types.SubscriptionOptions{PublishingInterval: time.Second, KeepAliveCount: 10, LifetimeCount: 30},
		Items: map[string]types.MonitoredItemOptions{
			"temp":  {NodeID: "ns=2;s=Temp", SamplingInterval: 500 * time.Millisecond},
			"alarm": {NodeID: "i=2253", EventFields: []string{"Message", "Severity"}},
		},
	}
}

func TestConfig_Deterministic(t *testing.T) {
	a := testConfig()
	b := testConfig()

	require.Equal(t, Config(a), Config(b))
	for range 10 {
		require.Equal(t, Config(a), Config(testConfig()))
	}
}

func TestConfig_DetectsChanges(t *testing.T) {
	base := Config(testConfig())

	tests := []struct {
		name   string
		mutate func(c *types.SubscriptionConfig)
	}{
		{"publishing interval", func(c *types.SubscriptionConfig) { c.Options.PublishingInterval = 2 * time.Second }},
		{"nil options", func(c *types.SubscriptionConfig) { c.Options = nil }},
		{"item added", func(c *types.SubscriptionConfig) { c.Items["press"] = types.MonitoredItemOptions{NodeID: "ns=2;s=P"} }},
		{"item removed", func(c *types.SubscriptionConfig) { delete(c.Items, "alarm") }},
		{"item renamed", func(c *types.SubscriptionConfig) {
			c.Items["temperature"] = c.Items["temp"]
			delete(c.Items, "temp")
		}},
		{"queue size", func(c *types.SubscriptionConfig) {
			it := c.Items["temp"]
			it.QueueSize = 5
			c.Items["temp"] = it
		}},
		{"filter", func(c *types.SubscriptionConfig) {
			it := c.Items["temp"]
			it.DataChangeFilter = &types.DataChangeFilter{DeadbandType: types.DeadbandAbsolute, DeadbandValue: 0.5}
			c.Items["temp"] = it
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig()
			tt.mutate(&c)
			require.NotEqual(t, base, Config(c))
		})
	}
}

func TestItem(t *testing.T) {
	a := types.MonitoredItemOptions{NodeID: "ns=2;s=A"}
	explicit := types.MonitoredItemOptions{NodeID: "ns=2;s=A", AttributeID: types.AttributeValue}

	require.Equal(t, Item(a), Item(explicit), "default attribute must hash like the explicit one")
	require.NotEqual(t, Item(a), Item(types.MonitoredItemOptions{NodeID: "ns=2;s=B"}))
	require.NotEqual(t,
		Item(types.MonitoredItemOptions{NodeID: "i=1", EventFields: []string{"ab", "c"}}),
		Item(types.MonitoredItemOptions{NodeID: "i=1", EventFields: []string{"a", "bc"}}),
	)
}
