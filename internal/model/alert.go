// Package model provides data models for the aegis platform.
package model

import (
	"time"
)

// Category 告警分类。
type Category string

const (
	// CategoryWebAttack Web 层攻击（注入、XSS、扫描等）。
	CategoryWebAttack Category = "web_attack"
	// CategoryVulnerabilityAttack 漏洞利用类攻击（RCE、反序列化、提权等）。
	CategoryVulnerabilityAttack Category = "vulnerability_attack"
	// CategoryIllegalConnection 非法连接（C2 回连、隧道、横向移动等）。
	CategoryIllegalConnection Category = "illegal_connection"
)

// Categories 返回全部分类，按路由平局时的优先级排列。
func Categories() []Category {
	return []Category{
		CategoryWebAttack,
		CategoryVulnerabilityAttack,
		CategoryIllegalConnection,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryWebAttack, CategoryVulnerabilityAttack, CategoryIllegalConnection:
		return true
	}
	return false
}

// ThreatLevel 威胁等级。
type ThreatLevel string

const (
	ThreatLevelHigh   ThreatLevel = "high"
	ThreatLevelMedium ThreatLevel = "medium"
	ThreatLevelLow    ThreatLevel = "low"
)

// Alert 待分析的安全告警。
type Alert struct {
	// AlertType 告警来源类型提示（如 waf、ids、edr），可为空。
	AlertType string `json:"alert_type"`

	// Message 告警正文，路由和专家分析的主要输入。
	Message string `json:"message"`

	// SourceIP 源地址（可选）。
	SourceIP string `json:"source_ip,omitempty"`

	// DestIP 目的地址（可选）。
	DestIP string `json:"dest_ip,omitempty"`

	// Metadata 额外上下文字段（可选）。
	Metadata map[string]string `json:"metadata,omitempty"`
}

// RouteDecision 路由分类结果。
type RouteDecision struct {
	// Category 命中的分类。
	Category Category `json:"category"`

	// Confidence 路由置信度，范围 [0, 1]。
	Confidence float64 `json:"confidence"`

	// Scores 各分类的综合得分。
	Scores map[Category]float64 `json:"scores"`

	// Matched 命中的关键词与模式，用于解释路由决策。
	Matched []string `json:"matched,omitempty"`

	// Fallback 为 true 时表示所有得分为零，使用了默认分类。
	Fallback bool `json:"fallback"`
}

// Finding 专家分析产出。
type Finding struct {
	// AttackTechnique 判定的攻击手法。
	AttackTechnique string `json:"attack_technique"`

	// RiskScore 风险评分，范围 [1, 10]。
	RiskScore int `json:"risk_score"`

	// ThreatLevel 由风险评分推导的威胁等级。
	ThreatLevel ThreatLevel `json:"threat_level"`

	// Recommendations 处置建议。
	Recommendations []string `json:"recommendations"`

	// Analysis 分析说明。
	Analysis string `json:"analysis"`

	// Degraded 为 true 时表示模型不可用，结果来自规则兜底。
	Degraded bool `json:"degraded"`
}

// StageTiming 各阶段耗时（毫秒）。
type StageTiming struct {
	RouteMillis  int64 `json:"route_ms"`
	ExpertMillis int64 `json:"expert_ms"`
	TotalMillis  int64 `json:"total_ms"`
}

// AnalysisRecord 一次完整的告警分析记录。
type AnalysisRecord struct {
	// TaskID 任务标识（ULID）。
	TaskID string `json:"task_id"`

	// Alert 原始告警。
	Alert Alert `json:"alert"`

	// Route 路由结果。
	Route RouteDecision `json:"route"`

	// Finding 专家分析结果。
	Finding Finding `json:"finding"`

	// Timing 阶段耗时。
	Timing StageTiming `json:"timing"`

	// CreatedAt 记录创建时间。
	CreatedAt time.Time `json:"created_at"`
}
