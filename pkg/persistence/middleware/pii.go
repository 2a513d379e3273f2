package middleware

import (
	"context"
	"regexp"

	"github.com/videlboga/scenarium/pkg/domain"
	"github.com/videlboga/scenarium/pkg/ports"
)

const maskedValue = "***"

type piiMiddleware struct {
	next     ports.SessionStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware masks context values whose keys match any of the
// patterns before they reach the underlying store. The in-memory session
// the engine works on is untouched; only the persisted copy is masked.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sess *domain.Session) error {
	cloned := sess.Clone()
	maskContext(cloned.Context, m.patterns)
	for i := range cloned.Stack {
		cloned.Stack[i].Context = domain.CopyContext(cloned.Stack[i].Context)
		maskContext(cloned.Stack[i].Context, m.patterns)
	}
	return m.next.Save(ctx, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, key string) (*domain.Session, error) {
	return m.next.Load(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskContext(ctx map[string]any, patterns []*regexp.Regexp) {
	for key := range ctx {
		for _, p := range patterns {
			if p.MatchString(key) {
				ctx[key] = maskedValue
				break
			}
		}
	}
}
