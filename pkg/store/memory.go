package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/SlyyCooper/agenai/pkg/workflow"
)

// MemoryPublisher keeps published documents in memory. Used by the CLI and
// by tests; satisfies both workflow.Publisher and workflow.Billing.
type MemoryPublisher struct {
	mu    sync.Mutex
	docs  map[uuid.UUID]*workflow.ReportDocument
	costs map[string]float64
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{
		docs:  make(map[uuid.UUID]*workflow.ReportDocument),
		costs: make(map[string]float64),
	}
}

func (m *MemoryPublisher) Publish(_ context.Context, _ string, doc *workflow.ReportDocument) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return map[string]string{"markdown": fmt.Sprintf("memory://%s", doc.ID)}, nil
}

func (m *MemoryPublisher) RecordCost(ownerID string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs[ownerID] += delta
}

// Get returns a published document, nil if absent.
func (m *MemoryPublisher) Get(id uuid.UUID) *workflow.ReportDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[id]
}

// CostFor returns the accumulated spend for an owner.
func (m *MemoryPublisher) CostFor(ownerID string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.costs[ownerID]
}
