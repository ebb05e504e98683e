package metrics

// Decision records an entitlement decision.
func Decision(action, reason string) {
	EntitlementDecisions.WithLabelValues(action, reason).Inc()
}

// DownloadGranted records a granted download for plan.
func DownloadGranted(plan string) {
	DownloadsGranted.WithLabelValues(plan).Inc()
}

// WebhookEvent records the outcome of a webhook delivery.
func WebhookEvent(provider, eventType, outcome string) {
	WebhookEventsTotal.WithLabelValues(provider, eventType, outcome).Inc()
}

// PlanChanged records a plan change. Source is the component that applied
// it, e.g. "stripe", "abacatepay" or "expiry".
func PlanChanged(plan, source string) {
	PlanChangesTotal.WithLabelValues(plan, source).Inc()
}

// PixGatewayCall records a PIX gateway call result ("ok" or "error").
func PixGatewayCall(status string) {
	PixGatewayCalls.WithLabelValues(status).Inc()
}
