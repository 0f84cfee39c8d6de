package jobs

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/parallel588/margaret/internal/store"
)

const KindAccountDeletion = "account_deletion"

// AccountDeletion erases a deactivated account and everything hanging off
// it. The handler is idempotent: an already-deleted user is a no-op, and an
// account reactivated before the job fires is left alone.
func AccountDeletion(accounts store.Accounts) HandlerFunc {
	return func(ctx context.Context, payload Payload) error {
		id, err := payload.Int64("user_id")
		if err != nil {
			return backoff.Permanent(err)
		}
		u, err := accounts.UserByID(ctx, id)
		if err != nil {
			return err
		}
		if u != nil && u.Active() {
			return nil
		}
		return accounts.DeleteUser(ctx, id)
	}
}
