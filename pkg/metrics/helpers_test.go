package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

// findSeries returns the series of family name whose labels include all of want.
func findSeries(t *testing.T, mfs []*dto.MetricFamily, name string, want map[string]string) *dto.Metric {
	t.Helper()
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			have := make(map[string]string, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				have[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if have[k] != v {
					continue series
				}
			}
			return m
		}
	}
	t.Fatalf("no %s series with labels %v", name, want)
	return nil
}

func histogramCount(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) uint64 {
	t.Helper()
	return findSeries(t, mfs, name, labels).GetHistogram().GetSampleCount()
}

func histogramSum(t *testing.T, mfs []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	return findSeries(t, mfs, name, labels).GetHistogram().GetSampleSum()
}
