package ports

// Metrics collects counters about the relay activity.
type Metrics interface {
	CosignProcessed(outcome string)
	PaymentReceived()
	NotificationsSent(count int)
	WatcherStreaming(streaming bool)
}
