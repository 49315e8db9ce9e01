package attendance

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	marks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "absensi_marks_total",
			Help: "Attendance scans by outcome state.",
		},
		[]string{"outcome"},
	)

	checkFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absensi_check_failures_total",
		Help: "Duplicate checks that failed against the store.",
	})

	guardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "absensi_guard_rejections_total",
		Help: "Marks refused because the daily guard was already claimed.",
	})
)
