// Package balances implements a fungible native token. Balances live
// in the system module's account records; accounts whose total falls
// below the existential deposit are reaped and the remainder is lost.
package balances

import (
	"fmt"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

const ModuleName = "Balances"

// Event variants.
const (
	EventEndowed uint8 = iota
	EventDustLost
	EventTransfer
	EventBalanceSet
)

type Endowed struct {
	Account     types.AccountID `cramberry:"1"`
	FreeBalance types.Balance   `cramberry:"2"`
}

type DustLost struct {
	Account types.AccountID `cramberry:"1"`
	Amount  types.Balance   `cramberry:"2"`
}

type Transfer struct {
	From   types.AccountID `cramberry:"1"`
	To     types.AccountID `cramberry:"2"`
	Amount types.Balance   `cramberry:"3"`
}

type BalanceSet struct {
	Who      types.AccountID `cramberry:"1"`
	Free     types.Balance   `cramberry:"2"`
	Reserved types.Balance   `cramberry:"3"`
}

var (
	ErrInsufficientBalance = frame.NewError(ModuleName, 0, "InsufficientBalance")
	ErrExistentialDeposit  = frame.NewError(ModuleName, 1, "ExistentialDeposit")
	ErrKeepAlive           = frame.NewError(ModuleName, 2, "KeepAlive")
	ErrOverflow            = frame.NewError(ModuleName, 3, "Overflow")
)

var totalIssuance = storage.NewValue[types.Balance](ModuleName, "TotalIssuance")

// GenesisAccount is an endowed account at genesis.
type GenesisAccount struct {
	Who  types.AccountID
	Free types.Balance
}

type Config struct {
	// ExistentialDeposit is the minimum total an account may hold.
	ExistentialDeposit types.Balance
	Accounts           frame.AccountStore
	Genesis            []GenesisAccount
}

type TransferArgs struct {
	Dest  types.AccountID `cramberry:"1"`
	Value types.Balance   `cramberry:"2"`
}

type SetBalanceArgs struct {
	Who         types.AccountID `cramberry:"1"`
	NewFree     types.Balance   `cramberry:"2"`
	NewReserved types.Balance   `cramberry:"3"`
}

type ForceTransferArgs struct {
	Source types.AccountID `cramberry:"1"`
	Dest   types.AccountID `cramberry:"2"`
	Value  types.Balance   `cramberry:"3"`
}

type Module struct {
	frame.Base
	cfg Config
}

var _ frame.GenesisBuilder = (*Module)(nil)

func New(cfg Config) *Module {
	m := &Module{cfg: cfg}
	m.Base = frame.NewBase(ModuleName, frame.Spec{
		Calls: []frame.CallSpec{
			frame.NewCall("transfer", frame.SignedOrigin,
				frame.Weigh[TransferArgs](70_000_000, types.Normal), m.transfer),
			frame.NewCall("set_balance", frame.RootOrigin,
				frame.Weigh[SetBalanceArgs](35_000_000, types.Operational), m.setBalance),
			frame.NewCall("force_transfer", frame.RootOrigin,
				frame.Weigh[ForceTransferArgs](70_000_000, types.Operational), m.forceTransfer),
			frame.NewCall("transfer_keep_alive", frame.SignedOrigin,
				frame.Weigh[TransferArgs](50_000_000, types.Normal), m.transferKeepAlive),
		},
		Events: []frame.EventSpec{
			frame.NewEvent[Endowed]("Endowed"),
			frame.NewEvent[DustLost]("DustLost"),
			frame.NewEvent[Transfer]("Transfer"),
			frame.NewEvent[BalanceSet]("BalanceSet"),
		},
		Errors:    []*frame.ModuleError{ErrInsufficientBalance, ErrExistentialDeposit, ErrKeepAlive, ErrOverflow},
		Constants: []frame.Constant{frame.NewConstant("ExistentialDeposit", cfg.ExistentialDeposit)},
		Storage:   []frame.Item{totalIssuance},
	})
	return m
}

func (m *Module) BuildGenesis(ctx *frame.Context) error {
	var total types.Balance
	for _, g := range m.cfg.Genesis {
		if g.Free < m.cfg.ExistentialDeposit {
			return fmt.Errorf("account %s endowed below the existential deposit", g.Who)
		}
		err := m.cfg.Accounts.MutateAccountData(ctx, g.Who, func(d *types.AccountData, _ bool) error {
			d.Free = d.Free.SaturatingAdd(g.Free)
			return nil
		})
		if err != nil {
			return err
		}
		total = total.SaturatingAdd(g.Free)
	}
	totalIssuance.Put(ctx.Store, total)
	return nil
}

// FreeBalance returns who's free balance.
func (m *Module) FreeBalance(r storage.Reader, who types.AccountID) types.Balance {
	return m.cfg.Accounts.AccountData(r, who).Free
}

// TotalIssuance returns the sum of all balances.
func (m *Module) TotalIssuance(r storage.Reader) types.Balance { return totalIssuance.Load(r) }

func (m *Module) transfer(ctx *frame.Context, origin frame.Origin, a TransferArgs) (types.PostDispatchInfo, error) {
	return frame.Fail(m.Transfer(ctx, origin.Who, a.Dest, a.Value, false))
}

func (m *Module) transferKeepAlive(ctx *frame.Context, origin frame.Origin, a TransferArgs) (types.PostDispatchInfo, error) {
	return frame.Fail(m.Transfer(ctx, origin.Who, a.Dest, a.Value, true))
}

func (m *Module) forceTransfer(ctx *frame.Context, _ frame.Origin, a ForceTransferArgs) (types.PostDispatchInfo, error) {
	return frame.Fail(m.Transfer(ctx, a.Source, a.Dest, a.Value, false))
}

// Transfer moves value from one account to another. With keepAlive the
// sender may not drop below the existential deposit.
func (m *Module) Transfer(ctx *frame.Context, from, to types.AccountID, value types.Balance, keepAlive bool) error {
	if value == 0 || from == to {
		return nil
	}
	ed := m.cfg.ExistentialDeposit
	var dust types.Balance
	err := m.cfg.Accounts.MutateAccountData(ctx, from, func(d *types.AccountData, _ bool) error {
		if d.Free < value {
			return ErrInsufficientBalance
		}
		d.Free -= value
		if d.Total() < ed {
			if keepAlive {
				return ErrKeepAlive
			}
			dust = d.Total()
			*d = types.AccountData{}
		}
		return nil
	})
	if err != nil {
		return err
	}
	err = m.cfg.Accounts.MutateAccountData(ctx, to, func(d *types.AccountData, exists bool) error {
		if !exists && value < ed {
			return ErrExistentialDeposit
		}
		if d.Free+value < d.Free {
			return ErrOverflow
		}
		d.Free += value
		if !exists {
			ctx.DepositEvent(ModuleName, EventEndowed, Endowed{Account: to, FreeBalance: d.Free})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if dust > 0 {
		totalIssuance.Mutate(ctx.Store, func(t *types.Balance) { *t = t.SaturatingSub(dust) })
		ctx.DepositEvent(ModuleName, EventDustLost, DustLost{Account: from, Amount: dust})
	}
	ctx.DepositEvent(ModuleName, EventTransfer, Transfer{From: from, To: to, Amount: value})
	return nil
}

func (m *Module) setBalance(ctx *frame.Context, _ frame.Origin, a SetBalanceArgs) (types.PostDispatchInfo, error) {
	ed := m.cfg.ExistentialDeposit
	free, reserved := a.NewFree, a.NewReserved
	if free < ed {
		free = 0
	}
	if reserved < ed {
		reserved = 0
	}
	err := m.cfg.Accounts.MutateAccountData(ctx, a.Who, func(d *types.AccountData, _ bool) error {
		issuance := totalIssuance.Load(ctx.Store).SaturatingSub(d.Total())
		d.Free, d.Reserved = free, reserved
		totalIssuance.Put(ctx.Store, issuance.SaturatingAdd(d.Total()))
		return nil
	})
	if err != nil {
		return frame.Fail(err)
	}
	ctx.DepositEvent(ModuleName, EventBalanceSet, BalanceSet{Who: a.Who, Free: free, Reserved: reserved})
	return frame.Ok()
}
