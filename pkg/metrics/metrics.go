package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// 全局 Registry，供 trackerd 注册与暴露
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		RequestDuration, RequestTotal,
		SessionStarted, SessionEnded, SessionAbandoned,
		SessionsActive, HeartbeatTotal, HandoffStored,
	)
}

// RequestDuration 接口处理耗时（秒）
var RequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "coord_request_duration_seconds",
		Help:    "接口处理耗时（秒）",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// RequestTotal 接口请求总数（按端点与结果）
var RequestTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coord_request_total",
		Help: "接口请求总数（按端点与结果）",
	},
	[]string{"endpoint", "result"}, // ok | error
)

// SessionStarted 新建会话总数（按 venture）
var SessionStarted = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coord_session_started_total",
		Help: "新建会话总数",
	},
	[]string{"venture"},
)

// SessionEnded 正常结束会话总数（按 status_label）
var SessionEnded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coord_session_ended_total",
		Help: "正常结束会话总数",
	},
	[]string{"status_label"}, // done | in-progress
)

// SessionAbandoned 因心跳超时被清扫的会话总数
var SessionAbandoned = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coord_session_abandoned_total",
		Help: "因心跳超时被清扫的会话总数",
	},
)

// SessionsActive 当前活跃会话数
var SessionsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "coord_sessions_active",
		Help: "当前活跃会话数",
	},
)

// HeartbeatTotal 心跳总数（按结果）
var HeartbeatTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "coord_heartbeat_total",
		Help: "心跳总数（按结果）",
	},
	[]string{"result"}, // ok | not_found | not_active
)

// HandoffStored 已落库的 handoff 总数
var HandoffStored = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "coord_handoff_stored_total",
		Help: "已落库的 handoff 总数",
	},
)

// WritePrometheus 将 Prometheus 文本格式写入 w（供 Hertz 等复用）
func WritePrometheus(w io.Writer) error {
	metrics, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range metrics {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
