package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

// AccountResolution is the account outcome of a conversion, worked out
// before anything is written.
type AccountResolution struct {
	Decision entity.AccountDecision
	Existing *entity.Account // set for LinkExisting

	// PossibleDuplicate flags a CreateNew whose name already exists. It
	// never blocks the conversion.
	PossibleDuplicate bool
}

type AccountResolver struct{}

func (AccountResolver) Resolve(
	ctx context.Context, accounts entity.AccountRepositoryInterface, cmd *ConversionCommand,
) (*AccountResolution, error) {
	res := &AccountResolution{Decision: cmd.Account}

	switch cmd.Account.Mode {
	case entity.AccountModeNone:
		return res, nil

	case entity.AccountModeLinkExisting:
		account, err := accounts.GetAccount(ctx, cmd.Account.AccountID)
		if errors.Is(err, entity.ErrAccountNotFound) {
			return nil, newAccountNotFoundError(cmd.Account.AccountID, err)
		}
		if err != nil {
			return nil, fmt.Errorf("loading account %d: %w", cmd.Account.AccountID, err)
		}
		res.Existing = account
		return res, nil

	case entity.AccountModeCreateNew:
		matches, err := accounts.FindAccountsByName(ctx, cmd.Account.Name)
		if err != nil {
			return nil, fmt.Errorf("checking account name: %w", err)
		}
		res.PossibleDuplicate = len(matches) > 0
		return res, nil
	}

	return nil, fmt.Errorf("unknown account mode %q", cmd.Account.Mode)
}
