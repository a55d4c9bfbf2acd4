package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks catalog administration.
type Metrics struct {
	ServicesAdded   prometheus.Counter
	CatalogUpdates  *prometheus.CounterVec
	CatalogServices prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		ServicesAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolshare_catalog_services_added_total",
			Help: "Total number of service offerings added",
		}),
		CatalogUpdates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "poolshare_catalog_updates_total",
			Help: "Catalog updates by field",
		}, []string{"field"}),
		CatalogServices: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poolshare_catalog_services",
			Help: "Number of service offerings in the catalog",
		}),
	}
}

func (m *Metrics) IncrementServicesAdded() {
	if m == nil {
		return
	}
	m.ServicesAdded.Inc()
	m.CatalogServices.Inc()
}

func (m *Metrics) IncrementUpdate(field string) {
	if m == nil {
		return
	}
	m.CatalogUpdates.WithLabelValues(field).Inc()
}
