package biz

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/aegis/internal/model"
	"github.com/kart-io/aegis/internal/pkg/textutil"
	"github.com/kart-io/aegis/pkg/llm"
	analyzeropts "github.com/kart-io/aegis/pkg/options/analyzer"
	"github.com/kart-io/aegis/pkg/utils/json"
)

// expertSystemPrompt 专家分析的系统提示词。要求模型仅输出 JSON。
const expertSystemPrompt = `You are a senior security analyst. Analyze the given alert and respond with a single JSON object only, no markdown, using this exact schema:
{"attack_technique": string, "risk_score": number between 1 and 10, "threat_level": "high"|"medium"|"low", "recommendations": [string], "analysis": string}`

// 各分类的提示词模板。{{payload}} 等占位符在构建时替换。
var expertPromptTemplates = map[model.Category]string{
	model.CategoryWebAttack: `Analyze this web attack alert.
Alert type: {{alert_type}}
Payload: {{payload}}
Source IP: {{source_ip}}, Destination IP: {{dest_ip}}
Focus on injection techniques, XSS, path traversal and web application weaknesses.`,
	model.CategoryVulnerabilityAttack: `Analyze this vulnerability exploitation alert.
Alert type: {{alert_type}}
Payload: {{payload}}
Source IP: {{source_ip}}, Destination IP: {{dest_ip}}
Focus on CVE identification, exploit chains and affected components.`,
	model.CategoryIllegalConnection: `Analyze this suspicious connection alert.
Alert type: {{alert_type}}
Payload: {{payload}}
Source IP: {{source_ip}}, Destination IP: {{dest_ip}}
Focus on C2 communication, tunneling, lateral movement and data exfiltration.`,
}

// expertReply 模型结构化输出的解析目标。
type expertReply struct {
	AttackTechnique string   `json:"attack_technique"`
	RiskScore       float64  `json:"risk_score"`
	ThreatLevel     string   `json:"threat_level"`
	Recommendations []string `json:"recommendations"`
	Analysis        string   `json:"analysis"`
}

// Expert 针对单个分类的专家分析器。
// 模型不可用或输出不可解析时回落到规则分析，保证任何告警都有分析结果。
type Expert struct {
	category     model.Category
	chatProvider llm.ChatProvider
	opts         *analyzeropts.Options
}

// NewExpert 创建指定分类的专家分析器。
func NewExpert(category model.Category, chatProvider llm.ChatProvider, opts *analyzeropts.Options) *Expert {
	if opts == nil {
		opts = analyzeropts.NewOptions()
	}
	return &Expert{
		category:     category,
		chatProvider: chatProvider,
		opts:         opts,
	}
}

// Analyze 分析告警并返回结构化结论。此方法不返回错误。
func (e *Expert) Analyze(ctx context.Context, alert *model.Alert) *model.Finding {
	if e.chatProvider == nil {
		return e.fallback(alert, "chat provider not configured")
	}

	prompt := e.buildPrompt(alert)
	resp, err := e.chatProvider.Generate(ctx, prompt, expertSystemPrompt)
	if err != nil {
		logger.Warnw("专家分析调用失败，使用规则兜底",
			"category", e.category,
			"error", err.Error(),
		)
		return e.fallback(alert, err.Error())
	}

	finding, err := e.parseReply(resp.Content)
	if err != nil {
		logger.Warnw("专家分析输出解析失败，使用规则兜底",
			"category", e.category,
			"error", err.Error(),
		)
		return e.fallback(alert, err.Error())
	}
	return finding
}

// buildPrompt 渲染分类提示词模板。
func (e *Expert) buildPrompt(alert *model.Alert) string {
	tmpl, ok := expertPromptTemplates[e.category]
	if !ok {
		tmpl = expertPromptTemplates[model.CategoryWebAttack]
	}
	prompt := strings.ReplaceAll(tmpl, "{{alert_type}}", alert.AlertType)
	prompt = strings.ReplaceAll(prompt, "{{payload}}", alert.Message)
	prompt = strings.ReplaceAll(prompt, "{{source_ip}}", alert.SourceIP)
	prompt = strings.ReplaceAll(prompt, "{{dest_ip}}", alert.DestIP)
	return prompt
}

// parseReply 将模型输出解析为 Finding。
// 风险评分非数字或越界按解析失败处理，由调用方转入规则兜底。
func (e *Expert) parseReply(content string) (*model.Finding, error) {
	raw := textutil.ExtractJSONObject(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in reply")
	}

	var reply expertReply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reply: %w", err)
	}

	score := int(math.Round(reply.RiskScore))
	if score < 1 || score > 10 {
		return nil, fmt.Errorf("risk score out of range: %v", reply.RiskScore)
	}
	if reply.AttackTechnique == "" {
		return nil, fmt.Errorf("missing attack_technique")
	}

	return &model.Finding{
		AttackTechnique: reply.AttackTechnique,
		RiskScore:       score,
		ThreatLevel:     e.threatLevel(score),
		Recommendations: reply.Recommendations,
		Analysis:        reply.Analysis,
		Degraded:        false,
	}, nil
}

// threatLevel 按风险评分推导威胁等级。LLM 路径与兜底路径共用同一映射。
func (e *Expert) threatLevel(score int) model.ThreatLevel {
	switch {
	case score >= e.opts.HighRiskThreshold:
		return model.ThreatLevelHigh
	case score >= e.opts.MediumRiskThreshold:
		return model.ThreatLevelMedium
	default:
		return model.ThreatLevelLow
	}
}

// fallbackRule 规则兜底的单条启发式。
type fallbackRule struct {
	indicators      []string
	technique       string
	riskScore       int
	recommendations []string
}

// 各分类的兜底规则，按顺序匹配，首个命中的规则生效。
var fallbackRules = map[model.Category][]fallbackRule{
	model.CategoryWebAttack: {
		{
			indicators: []string{"union select", "' or ", "sqli", "sql injection", "%27"},
			technique:  "SQL Injection",
			riskScore:  8,
			recommendations: []string{
				"Use parameterized queries for all database access",
				"Deploy WAF rules blocking SQL meta-characters",
				"Audit database account privileges",
			},
		},
		{
			indicators: []string{"<script", "xss", "onerror", "javascript:"},
			technique:  "Cross-Site Scripting (XSS)",
			riskScore:  6,
			recommendations: []string{
				"Encode all user-controlled output",
				"Enable Content-Security-Policy headers",
			},
		},
		{
			indicators: []string{"../", "path traversal", "etc/passwd"},
			technique:  "Path Traversal",
			riskScore:  7,
			recommendations: []string{
				"Normalize and validate file paths before access",
				"Run services with minimal filesystem permissions",
			},
		},
	},
	model.CategoryVulnerabilityAttack: {
		{
			indicators: []string{"${jndi:", "log4j", "log4shell"},
			technique:  "Log4Shell Exploitation (CVE-2021-44228)",
			riskScore:  9,
			recommendations: []string{
				"Upgrade log4j to a patched release",
				"Block outbound LDAP/RMI from application hosts",
			},
		},
		{
			indicators: []string{"runtime.exec", "/bin/sh", "/bin/bash", "command injection", "rce"},
			technique:  "Remote Command Execution",
			riskScore:  9,
			recommendations: []string{
				"Isolate the affected host and capture forensics",
				"Patch the exploited component",
			},
		},
		{
			indicators: []string{"deserialization", "fastjson", "ysoserial"},
			technique:  "Insecure Deserialization",
			riskScore:  8,
			recommendations: []string{
				"Disable autotype features in JSON libraries",
				"Restrict classes allowed during deserialization",
			},
		},
	},
	model.CategoryIllegalConnection: {
		{
			indicators: []string{"reverse shell", "nc -", "4444", "31337"},
			technique:  "Reverse Shell Connection",
			riskScore:  9,
			recommendations: []string{
				"Isolate the host from the network immediately",
				"Inspect process tree for the shell parent",
			},
		},
		{
			indicators: []string{"c2", "beacon", "command and control", "callback"},
			technique:  "C2 Beaconing",
			riskScore:  8,
			recommendations: []string{
				"Block the destination address at the egress firewall",
				"Hunt for the implant on the source host",
			},
		},
		{
			indicators: []string{"dns tunnel", "icmp tunnel", "exfiltration"},
			technique:  "Covert Channel / Data Exfiltration",
			riskScore:  7,
			recommendations: []string{
				"Enable DNS query logging and rate limiting",
				"Review recently transferred data volumes",
			},
		},
	},
}

// fallback 规则兜底分析。结果形状与 LLM 路径完全一致，Degraded 置位。
func (e *Expert) fallback(alert *model.Alert, reason string) *model.Finding {
	text := strings.ToLower(alert.AlertType + " " + alert.Message)

	for _, rule := range fallbackRules[e.category] {
		for _, indicator := range rule.indicators {
			if strings.Contains(text, indicator) {
				return &model.Finding{
					AttackTechnique: rule.technique,
					RiskScore:       rule.riskScore,
					ThreatLevel:     e.threatLevel(rule.riskScore),
					Recommendations: rule.recommendations,
					Analysis:        fmt.Sprintf("Rule-based assessment (model unavailable: %s). Payload matched indicator %q.", reason, indicator),
					Degraded:        true,
				}
			}
		}
	}

	// 无规则命中时给出保守的中等评分。
	const defaultScore = 5
	return &model.Finding{
		AttackTechnique: "Unclassified " + string(e.category),
		RiskScore:       defaultScore,
		ThreatLevel:     e.threatLevel(defaultScore),
		Recommendations: []string{"Review the raw alert payload manually"},
		Analysis:        fmt.Sprintf("Rule-based assessment (model unavailable: %s). No specific indicator matched.", reason),
		Degraded:        true,
	}
}
