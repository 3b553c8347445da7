package voltgo

// Metric keys emitted through the process-global hashicorp/go-metrics sink.
// Applications opt in by configuring a sink; the default sink discards them.
var (
	MetricGatewayEnvelopeInCount   = []string{"voltgo", "gateway", "envelope", "in", "count"}
	MetricGatewayDecodeErrorCount  = []string{"voltgo", "gateway", "decode", "error", "count"}
	MetricGatewayConnectCount      = []string{"voltgo", "gateway", "connect", "count"}
	MetricGatewayReconnectCount    = []string{"voltgo", "gateway", "reconnect", "count"}
	MetricGatewayHeartbeatLatency  = []string{"voltgo", "gateway", "heartbeat", "latency"}
	MetricCacheMessageEvictedCount = []string{"voltgo", "cache", "message", "evicted", "count"}
	MetricDispatchHandlerErrCount  = []string{"voltgo", "dispatch", "handler", "error", "count"}
)
