package app

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sehansi-9/gztprocessor/internal/archive"
	"github.com/sehansi-9/gztprocessor/internal/commit"
	"github.com/sehansi-9/gztprocessor/internal/draft"
	"github.com/sehansi-9/gztprocessor/internal/gitrepo"
	"github.com/sehansi-9/gztprocessor/internal/roster"
	"github.com/sehansi-9/gztprocessor/internal/search"
	"github.com/sehansi-9/gztprocessor/internal/store"
	"github.com/sehansi-9/gztprocessor/internal/workspace"
)

type CommitOutcome struct {
	ID         string                `json:"id"`
	Gazette    workspace.GazetteView `json:"gazette"`
	Format     roster.Format         `json:"format"`
	Records    int                   `json:"records"`
	Warnings   []bool                `json:"warnings"`
	ArchiveKey string                `json:"archive_key,omitempty"`
	Journal    *gitrepo.Entry        `json:"journal,omitempty"`
}

// Commit sends the gazette's draft to the backend. Only after the backend
// accepts it is the gazette marked committed, its later siblings flagged and
// the draft saved, journaled, logged and archived. Those follow-up writes
// never undo the commit; their failures are logged.
func (s *Service) Commit(ctx context.Context, scope roster.Scope, p, g int, author string) (CommitOutcome, error) {
	ws, err := s.tenure(ctx, scope, p)
	if err != nil {
		return CommitOutcome{}, err
	}
	v, err := s.loadDraft(ctx, ws, p, g)
	if err != nil {
		return CommitOutcome{}, err
	}

	res, err := s.pipeline.Run(ctx, commit.Request{
		Scope:  scope,
		Format: v.Format,
		Number: v.Number,
		Date:   v.Date,
		Draft:  v.Draft,
	})
	if err != nil {
		return CommitOutcome{}, err
	}

	committed, err := ws.MarkCommitted(p, g)
	if err != nil {
		return CommitOutcome{}, err
	}
	s.cascade.PersistCascade(committed.Numbers, committed.Warnings, committed.Index)

	log := s.log.WithFields(logrus.Fields{"scope": scope, "gazette": v.Number})
	out := CommitOutcome{
		ID:       uuid.NewString(),
		Format:   res.Format,
		Records:  res.Payload.Records,
		Warnings: committed.Warnings,
	}

	body, err := draft.Encode(v.Draft)
	if err != nil {
		log.WithError(err).Error("encode committed draft")
	} else {
		if err := s.backend.SaveDraft(ctx, v.Number, body); err != nil {
			log.WithError(err).Error("save committed draft")
		}
		out.Journal, _ = s.record(scope, v, v.Draft.Kind(), body, author, "Commit "+v.Number)
	}

	payload, err := json.Marshal(res.Payload.Body)
	if err != nil {
		log.WithError(err).Error("encode commit payload")
		payload = nil
	}
	committedAt := s.now().UTC()
	if s.archive != nil && payload != nil {
		key, err := s.archive.Put(ctx, archive.Entry{
			ID:          out.ID,
			Scope:       scope,
			Number:      v.Number,
			Date:        v.Date,
			Format:      res.Format,
			CommittedAt: committedAt,
		}, payload)
		if err != nil {
			log.WithError(err).Error("archive commit payload")
		}
		out.ArchiveKey = key
	}

	rec := store.CommitRecord{
		ID:          out.ID,
		Scope:       string(scope),
		Number:      v.Number,
		Date:        v.Date,
		Format:      string(res.Format),
		Records:     res.Payload.Records,
		Payload:     payload,
		ArchiveKey:  out.ArchiveKey,
		CommittedAt: committedAt,
	}
	if out.Journal != nil {
		rec.JournalHash = out.Journal.Hash
	}
	if _, err := s.registry.RecordCommit(ctx, rec); err != nil {
		log.WithError(err).Error("record commit")
	}

	// Backend snapshots as of this gazette and every later one have changed.
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, scope, committed.Numbers[committed.Index:]...); err != nil {
			log.WithError(err).Warn("invalidate cached snapshots")
		}
	}
	s.search.DeleteRoster(search.RecordFor(scope, v.Number, v.Date, nil))

	if out.Gazette, err = ws.View(p, g); err != nil {
		return CommitOutcome{}, err
	}
	return out, nil
}
