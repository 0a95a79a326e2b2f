package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/aegis/internal/model"
)

func makeRecord(taskID string, category model.Category, level model.ThreatLevel, degraded bool) *model.AnalysisRecord {
	return &model.AnalysisRecord{
		TaskID: taskID,
		Route:  model.RouteDecision{Category: category},
		Finding: model.Finding{
			ThreatLevel: level,
			Degraded:    degraded,
		},
	}
}

func TestHistoryStore_Append(t *testing.T) {
	t.Run("容量满时淘汰最旧记录", func(t *testing.T) {
		s := NewHistoryStore(3)
		for i := 0; i < 5; i++ {
			s.Append(makeRecord(fmt.Sprintf("task-%d", i), model.CategoryWebAttack, model.ThreatLevelLow, false))
		}

		records := s.List(0)
		require.Len(t, records, 3)
		assert.Equal(t, "task-4", records[0].TaskID)
		assert.Equal(t, "task-2", records[2].TaskID)
	})

	t.Run("非法容量回落到默认值", func(t *testing.T) {
		s := NewHistoryStore(0)
		assert.Equal(t, 1000, s.limit)
	})
}

func TestHistoryStore_List(t *testing.T) {
	s := NewHistoryStore(10)
	for i := 0; i < 4; i++ {
		s.Append(makeRecord(fmt.Sprintf("task-%d", i), model.CategoryWebAttack, model.ThreatLevelLow, false))
	}

	t.Run("从新到旧排序", func(t *testing.T) {
		records := s.List(2)
		require.Len(t, records, 2)
		assert.Equal(t, "task-3", records[0].TaskID)
		assert.Equal(t, "task-2", records[1].TaskID)
	})

	t.Run("limit超过总量返回全部", func(t *testing.T) {
		records := s.List(100)
		assert.Len(t, records, 4)
	})
}

func TestHistoryStore_Clear(t *testing.T) {
	s := NewHistoryStore(10)
	s.Append(makeRecord("task-1", model.CategoryWebAttack, model.ThreatLevelHigh, false))
	s.Append(makeRecord("task-2", model.CategoryIllegalConnection, model.ThreatLevelLow, true))

	n := s.Clear()
	assert.Equal(t, 2, n)
	assert.Empty(t, s.List(0))
}

func TestHistoryStore_Stats(t *testing.T) {
	s := NewHistoryStore(10)
	s.Append(makeRecord("t1", model.CategoryWebAttack, model.ThreatLevelHigh, false))
	s.Append(makeRecord("t2", model.CategoryWebAttack, model.ThreatLevelMedium, true))
	s.Append(makeRecord("t3", model.CategoryVulnerabilityAttack, model.ThreatLevelLow, false))

	stats := s.Stats()
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, 3, stats.Retained)
	assert.Equal(t, 2, stats.ByCategory[string(model.CategoryWebAttack)])
	assert.Equal(t, 1, stats.ByCategory[string(model.CategoryVulnerabilityAttack)])
	assert.Equal(t, 1, stats.ByThreatLevel[string(model.ThreatLevelHigh)])
	assert.Equal(t, 1, stats.Degraded)
}
