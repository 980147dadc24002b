package metrics

// Config identifies the service in emitted metrics.
type Config struct {
	ServiceName string
	Environment string
}
