package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/mailwarden/internal/model"
	"github.com/ppiankov/mailwarden/internal/retro"
)

// FilterAPI is the remote rule surface: filter CRUD on the mail
// provider. The retroactive run goes through the message store, not
// through this interface.
type FilterAPI interface {
	CreateFilter(ctx context.Context, sel model.RuleSelector, action model.RuleAction) (id string, err error)
	GetFilter(ctx context.Context, id string) (model.RuleSelector, model.RuleAction, error)
	DeleteFilter(ctx context.Context, id string) error
	ListFilters(ctx context.Context) (ids []string, err error)
}

// Applier runs a retroactive application; satisfied by *retro.Applier.
type Applier interface {
	Apply(ctx context.Context, sel model.RuleSelector, action model.RuleAction) retro.Report
}

// Manager ties the remote filter surface, the local record store, and
// the retroactive applier together behind the rule verbs.
type Manager struct {
	Filters FilterAPI
	Records *Store
	Retro   Applier
}

// CreateResult is the structured response of a rule creation.
type CreateResult struct {
	Rule     Record        `json:"rule"`
	RetroRun *retro.Report `json:"retro_run,omitempty"`
}

// Create registers the rule remotely, records it locally, and — when
// retroactive is set — applies it to existing messages using the same
// selector the rule was created with. The retro report lands in both
// the result and the local record.
func (m *Manager) Create(ctx context.Context, sel model.RuleSelector, action model.RuleAction, retroactive bool) (*CreateResult, error) {
	if sel.IsZero() {
		return nil, model.Invalid("selector", "at least one criterion required")
	}
	if action.IsZero() {
		return nil, model.Invalid("action", "at least one label to add or remove required")
	}

	id, err := m.Filters.CreateFilter(ctx, sel, action)
	if err != nil {
		return nil, fmt.Errorf("create filter: %w", err)
	}

	rec := Record{ID: id, Selector: sel, Action: action, CreatedAt: time.Now().UTC()}
	if retroactive {
		report := m.Retro.Apply(ctx, sel, action)
		rec.RetroRun = &report
	}

	if m.Records != nil {
		if err := m.Records.Put(ctx, rec); err != nil {
			// The remote rule exists; a local bookkeeping failure must
			// not look like a failed creation.
			return &CreateResult{Rule: rec, RetroRun: rec.RetroRun},
				fmt.Errorf("rule %s created but not recorded locally: %w", id, err)
		}
	}

	return &CreateResult{Rule: rec, RetroRun: rec.RetroRun}, nil
}

// Get returns the rule, preferring the local record (it carries the
// retro report) and falling back to the remote surface.
func (m *Manager) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, model.Invalid("rule id", "required")
	}
	if m.Records != nil {
		if rec, err := m.Records.Get(ctx, id); err == nil {
			return rec, nil
		}
	}
	sel, action, err := m.Filters.GetFilter(ctx, id)
	if err != nil {
		return nil, err
	}
	return &Record{ID: id, Selector: sel, Action: action}, nil
}

// Delete removes the rule remotely and locally.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if id == "" {
		return model.Invalid("rule id", "required")
	}
	if err := m.Filters.DeleteFilter(ctx, id); err != nil {
		return err
	}
	if m.Records != nil {
		if err := m.Records.Delete(ctx, id); err != nil {
			return fmt.Errorf("rule %s deleted remotely but local record remains: %w", id, err)
		}
	}
	return nil
}

// List merges the remote filter ids with local records: every remote
// rule appears, enriched with the local record where one exists.
func (m *Manager) List(ctx context.Context) ([]Record, error) {
	ids, err := m.Filters.ListFilters(ctx)
	if err != nil {
		return nil, err
	}

	local := make(map[string]Record)
	if m.Records != nil {
		recs, err := m.Records.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			local[r.ID] = r
		}
	}

	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := local[id]; ok {
			out = append(out, rec)
			continue
		}
		sel, action, err := m.Filters.GetFilter(ctx, id)
		if err != nil {
			// A rule listed but not fetchable still shows up by id.
			out = append(out, Record{ID: id})
			continue
		}
		out = append(out, Record{ID: id, Selector: sel, Action: action})
	}
	return out, nil
}
