package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscription_TableName(t *testing.T) {
	sub := Subscription{}
	assert.Equal(t, "submgr_subscription", sub.TableName())
	assert.Equal(t, "submgr_subscription_topic", sub.TopicsTableName())
}

func TestNewSubscription(t *testing.T) {
	topics := []Topic{{ID: 1, Name: "weather"}, {ID: 2, Name: "traffic"}}

	sub := NewSubscription(100, topics, QoSExactlyOnce, true)

	assert.Equal(t, int64(0), sub.ID)
	assert.Equal(t, int64(100), sub.OwnerID)
	assert.Equal(t, QoSExactlyOnce, sub.QoS)
	assert.True(t, sub.Durable)
	assert.True(t, sub.Active)
	assert.Empty(t, sub.Queue)
	assert.Equal(t, []string{"weather", "traffic"}, sub.TopicNames())
	assert.WithinDuration(t, time.Now(), sub.CreatedAt, time.Second)
}

func TestSubscription_Clone(t *testing.T) {
	sub := NewSubscription(1, []Topic{{ID: 1, Name: "a"}}, QoSAtMostOnce, false)

	c := sub.Clone()
	c.Topics[0].Name = "b"
	c.Active = false

	assert.Equal(t, "a", sub.Topics[0].Name)
	assert.True(t, sub.Active)
}

func TestParseQoS(t *testing.T) {
	for _, q := range QoSLevels {
		got, err := ParseQoS(string(q))
		require.NoError(t, err)
		assert.Equal(t, q, got)
	}

	_, err := ParseQoS("exactly_once")
	assert.Error(t, err)
	_, err = ParseQoS("")
	assert.Error(t, err)
}

func TestSubscription_JSONHidesOwner(t *testing.T) {
	sub := NewSubscription(42, []Topic{{ID: 1, Name: "weather"}}, QoSAtLeastOnce, false)
	sub.Queue = "q1"

	data, err := json.Marshal(sub)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.NotContains(t, out, "OwnerID")
	assert.Equal(t, "AT_LEAST_ONCE", out["qos"])
	assert.Equal(t, "q1", out["queue"])
}
