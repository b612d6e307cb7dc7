package api

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samcharles93/fixq/pkg/fqp"
)

// PlanStore keeps prepared plans in memory, keyed by generated plan ID.
type PlanStore struct {
	mu    sync.Mutex
	plans map[string]*storedPlan
}

func NewPlanStore() *PlanStore {
	return &PlanStore{plans: make(map[string]*storedPlan)}
}

func (s *PlanStore) Create(model string, records []fqp.LayerRecord, now time.Time) *storedPlan {
	p := &storedPlan{
		ID:        "plan_" + uuid.NewString(),
		Model:     model,
		CreatedAt: now,
		Records:   records,
	}
	s.mu.Lock()
	s.plans[p.ID] = p
	s.mu.Unlock()
	return p
}

func (s *PlanStore) Get(id string) (*storedPlan, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.plans[id]
	return p, ok
}

func (s *PlanStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return false
	}
	delete(s.plans, id)
	return true
}
