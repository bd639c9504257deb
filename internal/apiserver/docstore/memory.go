package docstore

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps every document in process memory
type MemoryStore struct {
	mu        sync.RWMutex
	aiLogs    []*AILog
	analytics []*AnalyticsEvent
	reports   map[string]*UserReport
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reports: make(map[string]*UserReport),
	}
}

func stamp(id *string, created *time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if created.IsZero() {
		*created = time.Now().UTC()
	}
}

func (s *MemoryStore) InsertAILog(_ context.Context, log *AILog) error {
	stamp(&log.ID, &log.CreatedAt)
	cp := *log
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aiLogs = append(s.aiLogs, &cp)
	return nil
}

func (s *MemoryStore) ListAILogs(_ context.Context, filter AILogFilter) ([]*AILog, int64, error) {
	limit, offset := ClampPage(filter.Limit, filter.Offset)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*AILog
	for i := len(s.aiLogs) - 1; i >= 0; i-- {
		l := s.aiLogs[i]
		if filter.Type != "" && l.Type != filter.Type {
			continue
		}
		if filter.Success != nil && l.Success != *filter.Success {
			continue
		}
		if filter.UserID != 0 && l.UserID != filter.UserID {
			continue
		}
		cp := *l
		matched = append(matched, &cp)
	}
	return window(matched, limit, offset), int64(len(matched)), nil
}

func (s *MemoryStore) AILogStats(_ context.Context) ([]AILogStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]*AILogStat)
	latency := make(map[string]int64)
	for _, l := range s.aiLogs {
		st, ok := byType[l.Type]
		if !ok {
			st = &AILogStat{Type: l.Type}
			byType[l.Type] = st
		}
		st.Total++
		if l.Success {
			st.Successes++
		}
		if l.Fallback {
			st.Fallbacks++
		}
		latency[l.Type] += l.LatencyMs
	}

	out := make([]AILogStat, 0, len(byType))
	for t, st := range byType {
		st.AvgLatencyMs = float64(latency[t]) / float64(st.Total)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}

func (s *MemoryStore) InsertAnalytics(_ context.Context, event *AnalyticsEvent) error {
	stamp(&event.ID, &event.CreatedAt)
	cp := *event
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analytics = append(s.analytics, &cp)
	return nil
}

func (s *MemoryStore) AnalyticsSummary(_ context.Context, since time.Time) ([]AnalyticsCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct{ typ, action string }
	counts := make(map[key]int64)
	for _, e := range s.analytics {
		if e.CreatedAt.Before(since) {
			continue
		}
		counts[key{e.Type, e.Action}]++
	}

	out := make([]AnalyticsCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, AnalyticsCount{Type: k.typ, Action: k.action, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (s *MemoryStore) CreateReport(_ context.Context, report *UserReport) error {
	stamp(&report.ID, &report.CreatedAt)
	report.UpdatedAt = report.CreatedAt
	cp := *report
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[cp.ID] = &cp
	return nil
}

// owned must be called with the lock held
func (s *MemoryStore) owned(ownerID uint, id string) (*UserReport, error) {
	r, ok := s.reports[id]
	if !ok || r.UserID != ownerID {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *MemoryStore) GetReport(_ context.Context, ownerID uint, id string) (*UserReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, err := s.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListReports(_ context.Context, ownerID uint, limit, offset int) ([]*UserReport, int64, error) {
	limit, offset = ClampPage(limit, offset)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*UserReport
	for _, r := range s.reports {
		if r.UserID == ownerID {
			cp := *r
			mine = append(mine, &cp)
		}
	}
	slices.SortFunc(mine, func(a, b *UserReport) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return window(mine, limit, offset), int64(len(mine)), nil
}

func (s *MemoryStore) UpdateReport(_ context.Context, ownerID uint, id string, patch ReportPatch) (*UserReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.owned(ownerID, id)
	if err != nil {
		return nil, err
	}
	patch.Apply(r)
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) DeleteReport(_ context.Context, ownerID uint, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(ownerID, id); err != nil {
		return err
	}
	delete(s.reports, id)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close(context.Context) error { return nil }

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return items[offset:end]
}
