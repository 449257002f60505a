package task

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civora",
		Subsystem: "tasks",
		Name:      "dispatched_total",
		Help:      "Tasks successfully handed to the worker API, by task type.",
	}, []string{"type"})

	tasksSucceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civora",
		Subsystem: "tasks",
		Name:      "succeeded_total",
		Help:      "Tasks that reached the succeeded state, by task type.",
	}, []string{"type"})

	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civora",
		Subsystem: "tasks",
		Name:      "failed_total",
		Help:      "Tasks that reached the failed state, by task type.",
	}, []string{"type"})

	pollSkips = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "civora",
		Subsystem: "polling",
		Name:      "skips_total",
		Help:      "Meetings skipped by the decision-polling backoff, by reason.",
	}, []string{"reason"})
)
