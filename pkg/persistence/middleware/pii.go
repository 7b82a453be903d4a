package middleware

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aretw0/flowstate/pkg/domain"
	"github.com/aretw0/flowstate/pkg/ports"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     ports.InstanceStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks values of metadata and
// history data keys matching the patterns before they reach the store.
// Masking is one-way: loaded instances carry the mask, not the original value.
// It panics on an invalid pattern; use CompilePIIMiddleware for untrusted input.
func NewPIIMiddleware(patternStrings []string) Middleware {
	mw, err := CompilePIIMiddleware(patternStrings)
	if err != nil {
		panic(err)
	}
	return mw
}

// CompilePIIMiddleware is NewPIIMiddleware returning pattern errors.
func CompilePIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.InstanceStore) ports.InstanceStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, inst *domain.WorkflowInstance) error {
	// Deep clone to avoid side effects on the instance returned to callers.
	cloned := *inst
	cloned.Metadata = deepCopyMap(inst.Metadata)
	maskMap(cloned.Metadata, m.patterns)

	cloned.History = make([]domain.HistoryEntry, len(inst.History))
	for i, entry := range inst.History {
		if entry.Data != nil {
			entry.Data = deepCopyMap(entry.Data)
			maskMap(entry.Data, m.patterns)
		}
		cloned.History[i] = entry
	}

	return m.next.Save(ctx, &cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, workflowName, entityID string) (*domain.WorkflowInstance, error) {
	return m.next.Load(ctx, workflowName, entityID)
}

func (m *piiMiddleware) Delete(ctx context.Context, workflowName, entityID string) error {
	return m.next.Delete(ctx, workflowName, entityID)
}

func (m *piiMiddleware) List(ctx context.Context, workflowName string) ([]*domain.WorkflowInstance, error) {
	return m.next.List(ctx, workflowName)
}

// Helpers

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		masked := false
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = Mask
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}
