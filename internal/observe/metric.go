// Package observe 暴露 Prometheus 指标
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 指标定义
var (
	StmtTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cmscore_statements_total",
		Help: "已执行SQL语句总数",
	})
	StmtFail = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cmscore_statements_failed",
		Help: "执行失败的SQL语句数",
	})
	BatchTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cmscore_batches_total",
		Help: "顺序批次总数",
	})
	BatchFail = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cmscore_batches_failed",
		Help: "回滚的顺序批次数",
	})
)

// Register 必须在 main 调用一次
func Register() {
	prometheus.MustRegister(StmtTotal, StmtFail, BatchTotal, BatchFail)
}

// Handler 返回本地诊断用的 HTTP 处理器
func Handler() http.Handler { return promhttp.Handler() }
