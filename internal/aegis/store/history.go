package store

import (
	"sync"

	"github.com/kart-io/aegis/internal/model"
)

// HistoryStore 是有界的分析历史存储，超出容量时淘汰最旧记录。
type HistoryStore struct {
	mu      sync.RWMutex
	limit   int
	records []*model.AnalysisRecord
	total   int64
}

// NewHistoryStore 创建历史存储，limit 小于等于 0 时使用默认容量 1000。
func NewHistoryStore(limit int) *HistoryStore {
	if limit <= 0 {
		limit = 1000
	}
	return &HistoryStore{
		limit:   limit,
		records: make([]*model.AnalysisRecord, 0, limit),
	}
}

// Append 追加一条分析记录，容量满时丢弃最旧的一条。
func (s *HistoryStore) Append(record *model.AnalysisRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) >= s.limit {
		s.records = s.records[1:]
	}
	s.records = append(s.records, record)
	s.total++
}

// List 按时间从新到旧返回最多 limit 条记录。limit 小于等于 0 时返回全部。
func (s *HistoryStore) List(limit int) []*model.AnalysisRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]*model.AnalysisRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out
}

// Clear 清空全部记录，返回清除的条数。
func (s *HistoryStore) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.records)
	s.records = s.records[:0]
	return n
}

// HistoryStats 是历史记录的聚合统计。
type HistoryStats struct {
	Total         int64          `json:"total"`
	Retained      int            `json:"retained"`
	ByCategory    map[string]int `json:"by_category"`
	ByThreatLevel map[string]int `json:"by_threat_level"`
	Degraded      int            `json:"degraded"`
}

// Stats 返回保留记录的分类与威胁等级分布。
func (s *HistoryStore) Stats() *HistoryStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &HistoryStats{
		Total:         s.total,
		Retained:      len(s.records),
		ByCategory:    make(map[string]int),
		ByThreatLevel: make(map[string]int),
	}
	for _, r := range s.records {
		stats.ByCategory[string(r.Route.Category)]++
		stats.ByThreatLevel[string(r.Finding.ThreatLevel)]++
		if r.Finding.Degraded {
			stats.Degraded++
		}
	}
	return stats
}
