// Package api hosts the optional HTTP surface for operators. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for the scheduler state and the last cycle report.
//   - POST /fetch, a passthrough to the renderer guarded by X-Fetch-Secret.
//     The route is only mounted when a secret is configured.
package api
