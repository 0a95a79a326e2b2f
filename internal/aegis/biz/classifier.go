// Package biz 实现告警分析与知识库问答的业务逻辑。
package biz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/model"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
)

// categoryRules 单个分类的路由规则。
type categoryRules struct {
	keywords []string
	patterns []*regexp.Regexp
}

// 各分类的路由规则。关键词统一小写，匹配前对输入做小写归一化。
var routingRules = map[model.Category]*categoryRules{
	model.CategoryWebAttack: {
		keywords: []string{
			"sql injection", "sqli", "xss", "cross-site", "csrf",
			"union select", "webshell", "path traversal", "directory traversal",
			"file upload", "file inclusion", "scanner", "web attack",
			"http flood", "cookie", "parameter tampering",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)union\s+(all\s+)?select`),
			regexp.MustCompile(`(?i)<script[\s>]`),
			regexp.MustCompile(`(?i)(\.\./){2,}`),
			regexp.MustCompile(`(?i)('|%27)\s*(or|and)\s+['\d]`),
			regexp.MustCompile(`(?i)(eval|base64_decode|system)\s*\(`),
			regexp.MustCompile(`(?i)(onerror|onload)\s*=`),
		},
	},
	model.CategoryVulnerabilityAttack: {
		keywords: []string{
			"cve", "rce", "remote code execution", "deserialization",
			"buffer overflow", "privilege escalation", "exploit",
			"vulnerability", "log4j", "log4shell", "shellshock",
			"struts", "weblogic", "fastjson", "0day", "zero-day",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)cve-\d{4}-\d{4,}`),
			regexp.MustCompile(`(?i)\$\{jndi:`),
			regexp.MustCompile(`(?i)runtime\.exec`),
			regexp.MustCompile(`(?i)/bin/(ba)?sh`),
			regexp.MustCompile(`(?i)powershell(\.exe)?\s+-`),
			regexp.MustCompile(`(?i)\bmsf(venom|console)\b`),
		},
	},
	model.CategoryIllegalConnection: {
		keywords: []string{
			"c2", "command and control", "beacon", "reverse shell",
			"dns tunnel", "icmp tunnel", "tor exit", "proxy",
			"lateral movement", "botnet", "mining pool", "callback",
			"outbound connection", "suspicious connection", "data exfiltration",
		},
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\b\d{1,3}(\.\d{1,3}){3}:(4444|6666|8443|31337)\b`),
			regexp.MustCompile(`(?i)reverse\s+shell`),
			regexp.MustCompile(`(?i)(dns|icmp|http)\s+tunnel`),
			regexp.MustCompile(`(?i)\bnc(\.exe)?\s+-[lnvpe]+\b`),
			regexp.MustCompile(`(?i)(xmrig|minerd|stratum\+tcp)`),
		},
	},
}

// Router 基于关键词与正则规则的告警路由器。
// 规则表固定，相同输入产生确定的路由结果。
type Router struct {
	opts *analyzeropts.Options
}

// NewRouter 创建路由器实例。
func NewRouter(opts *analyzeropts.Options) *Router {
	if opts == nil {
		opts = analyzeropts.NewOptions()
	}
	return &Router{opts: opts}
}

// Route 对告警做分类路由。得分全为零时回落到 web_attack 并标记 Fallback。
func (r *Router) Route(alert *model.Alert) *model.RouteDecision {
	text := strings.ToLower(alert.AlertType + " " + alert.Message)
	hinted := hintCategory(alert.AlertType)

	decision := &model.RouteDecision{
		Scores: make(map[model.Category]float64, len(routingRules)),
	}

	var best model.Category
	bestScore := -1.0
	// 按固定优先级遍历，得分相同时排位靠前的分类胜出。
	for _, category := range model.Categories() {
		score, matched := r.score(text, routingRules[category])
		if category == hinted {
			score += r.opts.HintBonus
			matched = append(matched, fmt.Sprintf("hint:%s", hinted))
		}
		decision.Scores[category] = score

		if score > bestScore {
			best = category
			bestScore = score
			decision.Matched = matched
		}
	}

	if bestScore <= 0 {
		decision.Category = model.CategoryWebAttack
		decision.Confidence = 0
		decision.Fallback = true
		decision.Matched = nil
		logger.Debugw("路由得分全为零，使用默认分类",
			"alert_type", alert.AlertType,
			"category", decision.Category,
		)
		return decision
	}

	decision.Category = best
	decision.Confidence = r.confidence(bestScore)
	return decision
}

// score 计算单个分类的组合得分。
// 关键词与正则得分分别按规则集大小归一化后加权求和。
func (r *Router) score(text string, rules *categoryRules) (float64, []string) {
	var matched []string

	kwHits := 0
	for _, kw := range rules.keywords {
		if strings.Contains(text, kw) {
			kwHits++
			matched = append(matched, kw)
		}
	}

	patHits := 0
	for _, pat := range rules.patterns {
		if m := pat.FindString(text); m != "" {
			patHits++
			matched = append(matched, fmt.Sprintf("pattern:%s", m))
		}
	}

	kwScore := float64(kwHits) / float64(len(rules.keywords))
	patScore := float64(patHits) / float64(len(rules.patterns))
	return r.opts.KeywordWeight*kwScore + r.opts.PatternWeight*patScore, matched
}

// confidence 由最高得分推导置信度。
// 得分低于最小置信度阈值时按比例衰减，而不是直接拒绝分类结果。
func (r *Router) confidence(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	if score < r.opts.MinConfidence && r.opts.MinConfidence > 0 {
		return score * (score / r.opts.MinConfidence)
	}
	return score
}

// hintCategory 解析告警类型提示。提示必须命名一个合法分类才生效。
func hintCategory(alertType string) model.Category {
	c := model.Category(strings.ToLower(strings.TrimSpace(alertType)))
	if c.Valid() {
		return c
	}
	return ""
}
