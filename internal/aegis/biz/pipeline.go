package biz

import (
	"context"
	"sync"
	"time"

	"github.com/kart-io/logger"
	"github.com/panjf2000/ants/v2"

	"github.com/kart-io/aegis/internal/aegis/store"
	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/pkg/llm"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
	"github.com/kart-io/aegis/pkg/utils/id"
)

// Analyzer 协调路由与专家分析，是告警分析的唯一入口。
// 专家分析保证对任何合法告警返回结果（可能降级），因此 Analyze 不返回错误。
type Analyzer struct {
	router  *Router
	experts map[model.Category]*Expert
	history *store.HistoryStore
	opts    *analyzeropts.Options
}

// NewAnalyzer 创建告警分析器。
func NewAnalyzer(chatProvider llm.ChatProvider, history *store.HistoryStore, opts *analyzeropts.Options) *Analyzer {
	if opts == nil {
		opts = analyzeropts.NewOptions()
	}

	experts := make(map[model.Category]*Expert, len(model.Categories()))
	for _, category := range model.Categories() {
		experts[category] = NewExpert(category, chatProvider, opts)
	}

	return &Analyzer{
		router:  NewRouter(opts),
		experts: experts,
		history: history,
		opts:    opts,
	}
}

// Analyze 执行一次完整的告警分析：路由、专家分析、计时与历史落库。
func (a *Analyzer) Analyze(ctx context.Context, alert *model.Alert) *model.AnalysisRecord {
	start := time.Now()

	decision := a.router.Route(alert)
	routeMillis := time.Since(start).Milliseconds()

	expertStart := time.Now()
	finding := a.experts[decision.Category].Analyze(ctx, alert)
	expertMillis := time.Since(expertStart).Milliseconds()

	record := &model.AnalysisRecord{
		TaskID:  id.NewULID(),
		Alert:   *alert,
		Route:   *decision,
		Finding: *finding,
		Timing: model.StageTiming{
			RouteMillis:  routeMillis,
			ExpertMillis: expertMillis,
			TotalMillis:  time.Since(start).Milliseconds(),
		},
		CreatedAt: time.Now(),
	}

	if a.history != nil {
		a.history.Append(record)
	}

	logger.Infow("告警分析完成",
		"task_id", record.TaskID,
		"category", decision.Category,
		"confidence", decision.Confidence,
		"risk_score", finding.RiskScore,
		"threat_level", finding.ThreatLevel,
		"degraded", finding.Degraded,
		"route_ms", routeMillis,
		"expert_ms", expertMillis,
		"total_ms", record.Timing.TotalMillis,
	)
	return record
}

// AnalyzeBatch 并发分析一批告警，结果顺序与输入一致。
// 协程池不可用时降级为串行处理。
func (a *Analyzer) AnalyzeBatch(ctx context.Context, alerts []*model.Alert) []*model.AnalysisRecord {
	records := make([]*model.AnalysisRecord, len(alerts))
	if len(alerts) == 0 {
		return records
	}

	pool, err := ants.NewPool(a.opts.BatchWorkers)
	if err != nil {
		logger.Warnw("协程池创建失败，降级为串行分析", "error", err.Error())
		for i, alert := range alerts {
			records[i] = a.Analyze(ctx, alert)
		}
		return records
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i, alert := range alerts {
		i, alert := i, alert
		wg.Add(1)
		task := func() {
			defer wg.Done()
			records[i] = a.Analyze(ctx, alert)
		}
		if err := pool.Submit(task); err != nil {
			// 池拒绝时直接在当前协程执行，保证每条告警都有结果。
			task()
		}
	}
	wg.Wait()

	return records
}

// History 按时间从新到旧返回分析历史。
func (a *Analyzer) History(limit int) []*model.AnalysisRecord {
	if a.history == nil {
		return nil
	}
	return a.history.List(limit)
}

// ClearHistory 清空分析历史，返回清除的条数。
func (a *Analyzer) ClearHistory() int {
	if a.history == nil {
		return 0
	}
	return a.history.Clear()
}

// Stats 返回分析历史统计。
func (a *Analyzer) Stats() *store.HistoryStats {
	if a.history == nil {
		return &store.HistoryStats{}
	}
	return a.history.Stats()
}
