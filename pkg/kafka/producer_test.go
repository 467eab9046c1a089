package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
)

func TestProducerConfig_SaramaMapping(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	sc := cfg.saramaConfig()

	assert.Equal(t, sarama.WaitForLocal, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionSnappy, sc.Producer.Compression)
	assert.True(t, sc.Producer.Return.Errors)
	assert.False(t, sc.Producer.Return.Successes)

	cfg.RequiredAcks = -1
	cfg.Compression = "zstd"
	sc = cfg.saramaConfig()
	assert.Equal(t, sarama.WaitForAll, sc.Producer.RequiredAcks)
	assert.Equal(t, sarama.CompressionZSTD, sc.Producer.Compression)

	cfg.Compression = "unknown"
	assert.Equal(t, sarama.CompressionNone, cfg.saramaConfig().Producer.Compression)
}

func TestDefaultConsumerConfig(t *testing.T) {
	cfg := DefaultConsumerConfig([]string{"localhost:9092"}, "pricer", []string{"option_quotes"})
	assert.Equal(t, sarama.OffsetNewest, cfg.OffsetInitial)
	assert.True(t, cfg.AutoCommit)
	assert.Equal(t, []string{"option_quotes"}, cfg.Topics)
}
