package kafka

import (
	"strings"
	"time"

	"github.com/pwhiting/Translate/tools/errs"

	"github.com/Shopify/sarama"
)

type Config struct {
	Brokers               []string `yaml:"brokers" toml:"brokers"`
	GroupID               string   `yaml:"groupId" toml:"group_id"`
	Topic                 string   `yaml:"topic" toml:"topic"`
	PartitionsPerTopic    int32    `yaml:"partitions" toml:"partitions"`
	ReplicationFactor     int16    `yaml:"replicationFactor" toml:"replication_factor"`
	ProducerRetries       int      `yaml:"producerRetries" toml:"producer_retries"`
	ProducerCompression   string   `yaml:"compression" toml:"compression"`       // none/snappy/lz4/zstd
	ConsumerInitialOffset string   `yaml:"initialOffset" toml:"initial_offset"` // newest/oldest
	Version               string   `yaml:"version" toml:"version"`
	AutoCreateTopic       bool     `yaml:"autoCreateTopic" toml:"auto_create_topic"`
}

func (c *Config) Validate() error {
	if len(c.Brokers) == 0 {
		return errs.ErrArgs.WrapMsg("kafka brokers missing")
	}
	if c.Topic == "" {
		c.Topic = "translate.fragments"
	}
	if c.GroupID == "" {
		c.GroupID = "translate-worker"
	}
	if c.PartitionsPerTopic <= 0 {
		c.PartitionsPerTopic = 8
	}
	if c.ReplicationFactor <= 0 {
		c.ReplicationFactor = 1
	}
	if c.ProducerRetries <= 0 {
		c.ProducerRetries = 5
	}
	if c.Version == "" {
		c.Version = "2.1.0"
	}
	if _, err := sarama.ParseKafkaVersion(c.Version); err != nil {
		return errs.ErrArgs.WrapMsg("bad kafka version", "version", c.Version)
	}
	return nil
}

// BuildSaramaConfig covers both ends: the hash partitioner keeps one meeting's
// fragments on one partition.
func BuildSaramaConfig(c *Config) *sarama.Config {
	cfg := sarama.NewConfig()
	if v, err := sarama.ParseKafkaVersion(c.Version); err == nil {
		cfg.Version = v
	}
	cfg.ClientID = "translate"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = c.ProducerRetries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	switch strings.ToLower(c.ConsumerInitialOffset) {
	case "oldest":
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	default:
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Return.Errors = true

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}
