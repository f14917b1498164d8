package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAreRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.Responses.WithLabelValues("CACHE_HIT").Inc()
	m.Revalidations.WithLabelValues(OutcomeOversized).Inc()

	if v := testutil.ToFloat64(m.Responses.WithLabelValues("CACHE_HIT")); v != 1 {
		t.Fatalf("Hits: %v", v)
	}
	if n := testutil.CollectAndCount(m.Revalidations); n != 1 {
		t.Fatalf("Revalidation series: %d", n)
	}
}

func TestTwoInstancesWithoutRegisterer(t *testing.T) {
	New(nil)
	New(nil)
}

func TestRegisterGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterGauges(reg, map[string]func() float64{"leased_connections": func() float64 { return 3 }})
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	if len(families) != 1 || families[0].GetName() != "cacheclient_leased_connections" {
		t.Fatalf("Families: %v", families)
	}
	if v := families[0].GetMetric()[0].GetGauge().GetValue(); v != 3 {
		t.Fatalf("Gauge is %v", v)
	}
}
