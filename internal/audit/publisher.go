package audit

import (
	"context"

	"github.com/rs/zerolog"
)

// Archive is a queryable secondary copy of sealed records. The hash-chained
// log file remains the source of truth for verification; the archive only
// serves operational lookups.
type Archive interface {
	Append(ctx context.Context, rec Record) error
	ListByActor(ctx context.Context, actor string) ([]Record, error)
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

// Publisher seals events into the chain and mirrors them into the archive.
// Archive failures are logged and swallowed: losing a query copy must not
// block or fail the tamper-evident append.
type Publisher struct {
	chain   *ChainLogger
	archive Archive
	log     zerolog.Logger
}

func NewPublisher(chain *ChainLogger, archive Archive, log zerolog.Logger) *Publisher {
	return &Publisher{chain: chain, archive: archive, log: log}
}

// Emit seals the event and returns the persisted record.
func (p *Publisher) Emit(ctx context.Context, ev Event) (Record, error) {
	rec, err := p.chain.Record(ctx, ev)
	if err != nil {
		return Record{}, err
	}
	if p.archive != nil {
		if err := p.archive.Append(ctx, rec); err != nil {
			p.log.Warn().Err(err).Str("event_id", rec.ID).Msg("audit archive append failed")
		}
	}
	return rec, nil
}

// ListByActor returns archived records for one actor.
func (p *Publisher) ListByActor(ctx context.Context, actor string) ([]Record, error) {
	return p.archive.ListByActor(ctx, actor)
}
