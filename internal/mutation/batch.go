package mutation

import (
	"context"
	"fmt"
	"slices"

	"github.com/mmcdole/folio/internal/domain"
)

// BatchSender performs one server call that updates every record or none
type BatchSender[T any] func(ctx context.Context, items []T) error

// ApplyBatch updates several records optimistically and sends them in one
// call. Every record is locked for the duration, in id order so that two
// overlapping batches cannot deadlock. If the call fails each record is
// put back the way it was, last applied first.
func (co *Coordinator[T]) ApplyBatch(ctx context.Context, payloads []T, send BatchSender[T]) error {
	if len(payloads) == 0 {
		return nil
	}

	ids := make([]string, 0, len(payloads))
	seen := make(map[string]bool, len(payloads))
	for _, p := range payloads {
		id := p.GetID()
		if id == "" {
			return domain.ValidationErrors{{Field: "id", Message: "is required"}}
		}
		if seen[id] {
			return domain.ValidationErrors{{Field: "id", Message: fmt.Sprintf("%s appears more than once", id)}}
		}
		seen[id] = true
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var locked []string
	defer func() {
		for _, id := range locked {
			co.locks.Unlock(id)
		}
	}()
	for _, id := range ids {
		if err := co.locks.Lock(ctx, id); err != nil {
			return err
		}
		locked = append(locked, id)
	}

	applied := make([]pending[T], 0, len(payloads))
	for _, p := range payloads {
		pend, err := co.applyLocal(OpUpdate, p.GetID(), p)
		if err != nil {
			co.rollbackAll(applied)
			return err
		}
		applied = append(applied, pend)
	}
	co.logger.Debug("optimistic batch apply", "count", len(applied))

	if err := send(ctx, payloads); err != nil {
		co.rollbackAll(applied)
		co.logger.Error("batch failed, rolled back", "count", len(applied), "error", err)
		co.notifier.Notify(domain.NoticeError, domain.UserMessage(err))
		return err
	}

	co.cache.Invalidate(co.key)
	co.notifier.Notify(domain.NoticeSuccess, fmt.Sprintf("%d %ss updated", len(applied), co.label))
	return nil
}

func (co *Coordinator[T]) rollbackAll(applied []pending[T]) {
	for i := len(applied) - 1; i >= 0; i-- {
		co.rollback(applied[i])
	}
}
