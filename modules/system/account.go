package system

import (
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

// Account returns the account record of who.
func (m *Module) Account(r storage.Reader, who types.AccountID) types.AccountInfo {
	return account.Load(r, who)
}

// AccountNonce returns the next nonce expected from who.
func (m *Module) AccountNonce(r storage.Reader, who types.AccountID) uint32 {
	return account.Load(r, who).Nonce
}

// IncAccountNonce increments who's nonce.
func (m *Module) IncAccountNonce(ctx *frame.Context, who types.AccountID) {
	info := account.Load(ctx.Store, who)
	info.Nonce++
	account.Insert(ctx.Store, who, info)
}

func (m *Module) AccountData(r storage.Reader, who types.AccountID) types.AccountData {
	return account.Load(r, who).Data
}

func (m *Module) AccountExists(r storage.Reader, who types.AccountID) bool {
	return account.Contains(r, who)
}

func (m *Module) MutateAccountData(ctx *frame.Context, who types.AccountID, fn func(*types.AccountData, bool) error) error {
	info, exists := account.Get(ctx.Store, who)
	data := info.Data
	if err := fn(&data, exists); err != nil {
		return err
	}
	info.Data = data
	switch {
	case data.IsZero() && !exists:
	case data.IsZero() && info.RefCount == 0:
		account.Remove(ctx.Store, who)
		ctx.DepositEvent(ModuleName, EventKilledAccount, KilledAccount{Account: who})
	default:
		account.Insert(ctx.Store, who, info)
		if !exists {
			ctx.DepositEvent(ModuleName, EventNewAccount, NewAccount{Account: who})
		}
	}
	return nil
}
