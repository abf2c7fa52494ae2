package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNewManager(t *testing.T) {
	Convey("Given a private registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When a manager is created with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				m.recalculations.WithLabelValues("event", "ok").Inc()
				families, err := registry.Gather()
				So(err, ShouldBeNil)

				var found bool
				for _, f := range families {
					if f.GetName() == "test_unit_recalculations_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetName(), ShouldEqual, "env")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When empty options are given the defaults are kept", func() {
			m := NewManager(WithNamespace(""), WithSubsystem(""), WithHistogramBuckets(nil), WithPrometheusRegistry(registry))
			So(m.namespace, ShouldEqual, "peloton")
			So(m.subsystem, ShouldEqual, "engine")
			So(m.histogramBuckets, ShouldNotBeEmpty)
		})

		Convey("When two managers share a registry", func() {
			NewManager(WithPrometheusRegistry(registry))
			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recalculations are recorded", func() {
			before := testutil.ToFloat64(globalManager.recalculations.WithLabelValues("snapshot_test", "partial"))
			RecordRecalculation("snapshot_test", "partial", 12.5)
			So(testutil.ToFloat64(globalManager.recalculations.WithLabelValues("snapshot_test", "partial")), ShouldEqual, before+1)
		})

		Convey("When rows and item errors are added", func() {
			AddRowsWritten("rows_test", 3)
			AddRowsWritten("rows_test", 0)
			AddItemErrors("rows_test", 2)
			So(testutil.ToFloat64(globalManager.rowsWritten.WithLabelValues("rows_test")), ShouldEqual, 3)
			So(testutil.ToFloat64(globalManager.itemErrors.WithLabelValues("rows_test")), ShouldEqual, 2)
		})

		Convey("When gauges are set", func() {
			UpdateSnapshotRiders("gauge_test", 17)
			UpdateWorkerCount(4)
			UpdateWorkerRunning(2)
			So(testutil.ToFloat64(globalManager.snapshotRiders.WithLabelValues("gauge_test")), ShouldEqual, 17)
			So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
			So(testutil.ToFloat64(globalManager.workerRunning), ShouldEqual, 2)
		})

		Convey("When counters without values are touched", func() {
			before := testutil.ToFloat64(globalManager.classesFixed)
			AddClassesFixed(2)
			AddClassesFixed(-1)
			So(testutil.ToFloat64(globalManager.classesFixed), ShouldEqual, before+2)
		})

		Convey("When the remaining recorders are called", func() {
			So(func() {
				RecordScopeLockWait(1)
				RecordSchedulerRun("backfill", "ok")
				RecordHTTPRequest("/ranking", "GET", "200")
				RecordHTTPRequestDuration("/ranking", "GET", "200", 3)
				RecordRepositoryQuery("memory", "get_event")
				RecordRepositoryQueryLatency("memory", 0.2)
				RecordRepositoryUpdateLatency("memory", 0.4)
				RecordErrorByComponent("repository", "rollback")
				UpdateSystemGoroutineCount()
			}, ShouldNotPanic)
			So(testutil.ToFloat64(globalManager.systemGoroutineCount), ShouldBeGreaterThan, 0)
		})

		Convey("Then the registry is the custom one", func() {
			So(GetRegistry(), ShouldEqual, customRegistry)
		})
	})
}
