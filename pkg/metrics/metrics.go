// Package metrics provides the centralized Prometheus metrics registry for
// seedctl. All metrics are defined in their respective packages (cosmos, ru,
// importer, exporter, broker, redisseed) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by seedctl.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Database Request Metrics (pkg/cosmos):
//   - seedctl_cosmos_requests_total{operation, status} (Counter): Requests by REST operation and HTTP status
//   - seedctl_cosmos_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - seedctl_cosmos_request_charge_total{operation} (Counter): Cumulative RU consumed by operation
//
// RU Budget Metrics (pkg/ru):
//   - seedctl_ru_page_charge_total (Counter): Cumulative RU reported for export pages
//   - seedctl_ru_page_size (Gauge): Current adaptive page size
//   - seedctl_ru_throttle_delays_total (Counter): Inter-page delays applied for budget overruns
//   - seedctl_ru_throttle_delay_seconds (Histogram): Duration of applied delays
//
// Import Metrics (pkg/importer):
//   - seedctl_import_documents_total{outcome} (Counter): Documents by outcome (created, conflict, failed, skipped)
//   - seedctl_import_containers_total (Counter): Containers touched by import runs
//
// Export Metrics (pkg/exporter):
//   - seedctl_export_documents_total{outcome} (Counter): Documents by outcome (exported, updated, skipped)
//   - seedctl_export_pages_total (Counter): Document pages fetched
//   - seedctl_export_aborts_total{scope} (Counter): Aborted export units (container, range)
//
// Broker Metrics (pkg/broker):
//   - seedctl_broker_messages_total{outcome} (Counter): Messages by outcome (published, failed, skipped)
//
// Redis Metrics (pkg/redisseed):
//   - seedctl_redis_keys_total{outcome} (Counter): Keys by outcome (written, failed, skipped)
//
// Example Prometheus Queries:
//
//   # RU consumption rate during an export
//   rate(seedctl_ru_page_charge_total[1m])
//
//   # Share of pages that tripped the budget
//   rate(seedctl_ru_throttle_delays_total[5m]) / rate(seedctl_export_pages_total[5m])
//
//   # Export change ratio
//   sum(rate(seedctl_export_documents_total{outcome!="skipped"}[5m])) /
//   sum(rate(seedctl_export_documents_total[5m]))
