package syncengine

import (
	"context"
	"fmt"
)

const phaseRegisterUsers = "register-users"

// phaseRegisterUsers registers every user added in this sync's document
// that is not already a registered account on the remote. The registered
// set is fetched once up front rather than re-queried per candidate.
func (e *Engine) phaseRegisterUsers(ctx context.Context, sc *syncContext) {
	ctx, span := e.startSpan(ctx, phaseRegisterUsers)
	defer span.End()

	toAdd, _ := userDiff(sc)
	if len(toAdd) == 0 {
		return
	}

	registered, err := e.api.RegisteredUsers(ctx)
	if err != nil {
		wrapped := fmt.Errorf("list registered users: %w", err)
		for _, userID := range toAdd.Sorted() {
			e.recordAPIError(phaseRegisterUsers, ActionUserRegisterFailed, userID, wrapped, sc.report)
		}
		return
	}
	existing := make(map[string]struct{}, len(registered))
	for _, u := range registered {
		existing[u] = struct{}{}
	}

	for _, userID := range toAdd.Sorted() {
		if _, ok := existing[userID]; ok {
			e.record(phaseRegisterUsers, ActionUserAlreadyExists, userID, "", sc.report)
			continue
		}
		password, err := e.generatePassword()
		if err != nil {
			e.record(phaseRegisterUsers, ActionUserRegisterFailed, userID, err.Error(), sc.report)
			continue
		}
		if err := e.api.Register(ctx, userID, password); err != nil {
			e.recordAPIError(phaseRegisterUsers, ActionUserRegisterFailed, userID, err, sc.report)
			continue
		}
		e.record(phaseRegisterUsers, ActionUserRegistered, userID, "", sc.report)
	}
}
