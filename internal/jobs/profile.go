package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/wilofice/enel/internal/llm"
	"github.com/wilofice/enel/internal/store"
)

// ProfileJobName is the contact-profiling job's name in the job ledger.
const ProfileJobName = "profile"

// Profiler asks the language model for a short profile of each contact based
// on their recent conversation, and stores it on the contact row.
type Profiler struct {
	db           *store.DB
	gen          *llm.Generator
	historyLimit int
	log          *zap.Logger
}

// NewProfiler creates the profiling job.
func NewProfiler(db *store.DB, gen *llm.Generator, historyLimit int, log *zap.Logger) *Profiler {
	if historyLimit <= 0 {
		historyLimit = 50
	}
	return &Profiler{db: db, gen: gen, historyLimit: historyLimit, log: log}
}

// Run profiles every known contact. Contacts without usable history are
// skipped; a failure on one contact does not stop the rest.
func (p *Profiler) Run(ctx context.Context) error {
	ids, err := p.db.ListContactIDs()
	if err != nil {
		return fmt.Errorf("list contacts: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if err := p.profileOne(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("contact %s: %w", id, err))
		}
		if ctx.Err() != nil {
			break
		}
	}
	return errors.Join(errs...)
}

func (p *Profiler) profileOne(ctx context.Context, contactID string) error {
	name, err := p.db.ContactName(contactID)
	if err != nil {
		return fmt.Errorf("read name: %w", err)
	}
	if name == "" {
		name = "Contact"
	}

	rows, err := p.db.RecentForChat(contactID, p.historyLimit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	var lines []string
	for _, r := range rows {
		if r.Text == "" {
			continue
		}
		if r.FromMe {
			lines = append(lines, "Me: "+r.Text)
		} else {
			lines = append(lines, name+": "+r.Text)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	prompt := llm.BuildProfilePrompt(strings.Join(lines, "\n"), name)
	draft := p.gen.Generate(ctx, prompt)
	if !draft.OK {
		return nil
	}

	if err := p.db.UpdateContactProfile(contactID, draft.Text); err != nil {
		return fmt.Errorf("store profile: %w", err)
	}
	p.log.Info("contact profile updated", zap.String("contact_id", contactID))
	return nil
}
