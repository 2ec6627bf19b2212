package pipeline

import (
	"context"
	"time"
)

// healthCheckTimeout bounds each startup probe.
const healthCheckTimeout = 15 * time.Second

// runHealthChecks probes every collaborator once at startup. Failures are
// warnings, not fatal: transient unavailability of one collaborator must
// not block the others.
func (o *Orchestrator) runHealthChecks(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	if !o.source.Healthy(ctx) {
		o.logger.WarnTag("PIPELINE", "health check: camera is not reachable")
	}
	if !o.analyzer.Healthy(ctx) {
		o.logger.WarnTag("PIPELINE", "health check: confirmation backend is not reachable")
	}
	if !o.dispatcher.Healthy(ctx) {
		o.logger.WarnTag("PIPELINE", "health check: a notification target is not ready")
	}
}
