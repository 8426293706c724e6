package common

const (
	RedisStreamIngestItem     = "pulse.ingest.item"
	RedisStreamAggregationRun = "pulse.aggregation.run"

	RedisStreamGroup    = "pulse-group"
	RedisStreamConsumer = "pulse-consumer"
)
