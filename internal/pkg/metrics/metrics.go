package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polychat_chat_requests_total",
		Help: "Chat requests by terminal state",
	}, []string{"outcome"})

	ToolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polychat_tool_calls_total",
		Help: "Tool invocations requested by the model",
	}, []string{"tool", "status"})

	AgentSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polychat_agent_steps",
		Help:    "Model rounds used per chat request",
		Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
	})

	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polychat_orders_total",
		Help: "Orders submitted by the agent",
	}, []string{"status", "side"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polychat_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polychat_risk_rejects_total",
		Help: "Total risk engine rejections",
	}, []string{"reason"})
)
