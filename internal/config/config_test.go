package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Bot.PollTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.Broadcast.SendDelay)
}

func TestLoadKafkaBrokersSplitsOnComma(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,kafka-3:9092")

	cfg := Load()

	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092", "kafka-3:9092"}, cfg.Kafka.Brokers)
}

func TestLoadAdminIDs(t *testing.T) {
	t.Setenv("ADMIN_IDS", "1001, 1002,notanid,1003")

	cfg := Load()

	assert.Equal(t, []int64{1001, 1002, 1003}, cfg.Bot.AdminIDs)
}
