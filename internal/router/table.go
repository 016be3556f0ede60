package router

import "sync"

// Rule maps one model name to an ordered candidate list.
type Rule struct {
	Model     string
	Primary   string
	Fallbacks []string
}

// Table is the model -> candidates lookup. The rule set may be swapped at
// runtime on config reload; lookups are safe for concurrent use.
type Table struct {
	mu              sync.RWMutex
	rules           map[string][]string
	defaultProvider string
}

// NewTable builds a Table from rules and an optional default provider.
func NewTable(rules []Rule, defaultProvider string) *Table {
	t := &Table{}
	t.SetRules(rules, defaultProvider)
	return t
}

// SetRules replaces the rule set and default provider atomically.
func (t *Table) SetRules(rules []Rule, defaultProvider string) {
	table := make(map[string][]string, len(rules))
	for _, rule := range rules {
		candidates := make([]string, 0, 1+len(rule.Fallbacks))
		candidates = append(candidates, rule.Primary)
		candidates = append(candidates, rule.Fallbacks...)
		table[rule.Model] = candidates
	}

	t.mu.Lock()
	t.rules = table
	t.defaultProvider = defaultProvider
	t.mu.Unlock()
}

// Candidates returns the ordered provider keys for a model. A model with no
// rule falls back to the default provider alone; nil means no route exists.
func (t *Table) Candidates(model string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if candidates, ok := t.rules[model]; ok {
		out := make([]string, len(candidates))
		copy(out, candidates)
		return out
	}
	if t.defaultProvider != "" {
		return []string{t.defaultProvider}
	}
	return nil
}

// Models returns every model with an explicit rule.
func (t *Table) Models() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	models := make([]string, 0, len(t.rules))
	for model := range t.rules {
		models = append(models, model)
	}
	return models
}
