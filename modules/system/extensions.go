package system

import (
	"encoding/binary"
	"math"

	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/types"
)

// Extensions returns the validity chain in its fixed order: spec
// version, transaction version, genesis, era, nonce, weight.
func (m *Module) Extensions() frame.Extensions {
	return frame.Extensions{
		CheckSpecVersion{},
		CheckTxVersion{},
		CheckGenesis{sys: m},
		CheckEra{sys: m},
		CheckNonce{sys: m},
		CheckWeight{sys: m},
	}
}

// pass turns a block-mode check into a pool-mode result.
func pass(err error) (types.ValidTransaction, error) {
	if err != nil {
		return types.ValidTransaction{}, err
	}
	return types.DefaultValidTransaction(), nil
}

// CheckSpecVersion rejects extrinsics signed for another spec version.
type CheckSpecVersion struct{}

func (CheckSpecVersion) Identifier() string { return "CheckSpecVersion" }

func (c CheckSpecVersion) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	return pass(c.PreDispatch(ctx, tx))
}

func (CheckSpecVersion) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	if tx.Extra == nil {
		return nil
	}
	have := ctx.Runtime().Version().SpecVersion
	switch {
	case tx.Extra.SpecVersion < have:
		return types.Invalid(types.InvalidStale)
	case tx.Extra.SpecVersion > have:
		return types.Invalid(types.InvalidFuture)
	}
	return nil
}

// CheckTxVersion rejects extrinsics encoded for another transaction
// version.
type CheckTxVersion struct{}

func (CheckTxVersion) Identifier() string { return "CheckTxVersion" }

func (c CheckTxVersion) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	return pass(c.PreDispatch(ctx, tx))
}

func (CheckTxVersion) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	if tx.Extra != nil && tx.Extra.TxVersion != ctx.Runtime().Version().TransactionVersion {
		return types.Invalid(types.InvalidMalformed)
	}
	return nil
}

// CheckGenesis rejects extrinsics signed for another chain.
type CheckGenesis struct{ sys *Module }

func (CheckGenesis) Identifier() string { return "CheckGenesis" }

func (c CheckGenesis) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	return pass(c.PreDispatch(ctx, tx))
}

func (c CheckGenesis) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	if tx.Extra == nil {
		return nil
	}
	g, ok := c.sys.BlockHash(ctx.Store, 0)
	if !ok || g != tx.Extra.GenesisHash {
		return types.Invalid(types.InvalidWrongChain)
	}
	return nil
}

// CheckEra enforces the mortality window and checks the checkpoint
// hash against the chain at the era's birth.
type CheckEra struct{ sys *Module }

func (CheckEra) Identifier() string { return "CheckMortality" }

func (c CheckEra) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	if tx.Extra == nil {
		return types.DefaultValidTransaction(), nil
	}
	if err := c.PreDispatch(ctx, tx); err != nil {
		return types.ValidTransaction{}, err
	}
	era := tx.Extra.Era
	if era.IsImmortal() {
		return types.DefaultValidTransaction(), nil
	}
	v := types.DefaultValidTransaction()
	v.Longevity = uint64(era.Death() - c.sys.BlockNumber(ctx.Store))
	return v, nil
}

func (c CheckEra) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	if tx.Extra == nil {
		return nil
	}
	era := tx.Extra.Era
	birth := types.BlockNumber(0)
	if !era.IsImmortal() {
		current := c.sys.BlockNumber(ctx.Store)
		if current < era.Birth {
			return types.Invalid(types.InvalidFuture)
		}
		if current >= era.Death() {
			return types.Invalid(types.InvalidOutdated)
		}
		birth = era.Birth
	}
	h, ok := c.sys.BlockHash(ctx.Store, birth)
	if !ok {
		return types.Invalid(types.InvalidAncientBirthBlock)
	}
	if h != tx.Extra.CheckpointHash {
		return types.Invalid(types.InvalidOutdated)
	}
	return nil
}

// CheckNonce orders a signer's extrinsics and prevents replay.
type CheckNonce struct{ sys *Module }

func (CheckNonce) Identifier() string { return "CheckNonce" }

// NonceTag is the pool tag of who's extrinsic with nonce.
func NonceTag(who types.AccountID, nonce uint32) []byte {
	return binary.LittleEndian.AppendUint32(append([]byte(nil), who[:]...), nonce)
}

func (c CheckNonce) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	if tx.Signer == nil {
		return types.DefaultValidTransaction(), nil
	}
	who, nonce := *tx.Signer, tx.Extra.Nonce
	expected := c.sys.AccountNonce(ctx.Store, who)
	if nonce < expected {
		return types.ValidTransaction{}, types.Invalid(types.InvalidStale)
	}
	v := types.ValidTransaction{
		Provides:  [][]byte{NonceTag(who, nonce)},
		Longevity: math.MaxUint64,
		Propagate: true,
	}
	if nonce > expected {
		if tx.Source == types.SourceInBlock {
			return types.ValidTransaction{}, types.Invalid(types.InvalidFuture)
		}
		v.Requires = [][]byte{NonceTag(who, nonce-1)}
	}
	return v, nil
}

func (c CheckNonce) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	if tx.Signer == nil {
		return nil
	}
	expected := c.sys.AccountNonce(ctx.Store, *tx.Signer)
	switch {
	case tx.Extra.Nonce < expected:
		return types.Invalid(types.InvalidStale)
	case tx.Extra.Nonce > expected:
		return types.Invalid(types.InvalidFuture)
	}
	c.sys.IncAccountNonce(ctx, *tx.Signer)
	return nil
}

// CheckWeight keeps blocks within their weight and length budgets.
type CheckWeight struct{ sys *Module }

func (CheckWeight) Identifier() string { return "CheckWeight" }

func (c CheckWeight) Validate(ctx *frame.Context, tx *frame.TxInfo) (types.ValidTransaction, error) {
	w := c.sys.Weights()
	if max, limited := w.MaxExtrinsicFor(tx.Info.Class); limited && tx.Info.Weight > max {
		return types.ValidTransaction{}, types.Invalid(types.InvalidExhaustsResources)
	}
	if tx.Info.Class != types.Mandatory && tx.Length > c.sys.Length().MaxFor(tx.Info.Class) {
		return types.ValidTransaction{}, types.Invalid(types.InvalidExhaustsResources)
	}
	priority := uint64(math.MaxUint64)
	if tx.Info.Class == types.Normal {
		priority = uint64(tx.Info.Weight)
	}
	return types.ValidTransaction{Priority: priority, Longevity: math.MaxUint64, Propagate: true}, nil
}

func (c CheckWeight) PreDispatch(ctx *frame.Context, tx *frame.TxInfo) error {
	class := tx.Info.Class
	length := c.sys.AllExtrinsicsLen(ctx.Store) + tx.Length
	if class != types.Mandatory && length > c.sys.Length().MaxFor(class) {
		return types.Invalid(types.InvalidExhaustsResources)
	}

	w := c.sys.Weights()
	if max, limited := w.MaxExtrinsicFor(class); limited && tx.Info.Weight > max {
		return types.Invalid(types.InvalidExhaustsResources)
	}
	consumed := c.sys.BlockWeight(ctx.Store)
	consumed.Add(class, tx.Info.Weight.SaturatingAdd(w.ExtrinsicBase))
	if max, limited := w.MaxTotal(class); limited {
		if consumed.Get(class) > max || consumed.Total() > w.MaxBlock {
			return types.Invalid(types.InvalidExhaustsResources)
		}
	}
	allExtrinsicsLen.Put(ctx.Store, length)
	blockWeight.Put(ctx.Store, consumed)
	return nil
}

// PostDispatch gives back the unused part of the estimate.
func (c CheckWeight) PostDispatch(ctx *frame.Context, tx *frame.TxInfo, post types.PostDispatchInfo, _ error) error {
	if unspent := post.Unspent(tx.Info); unspent > 0 {
		blockWeight.Mutate(ctx.Store, func(cw *frame.ConsumedWeight) { cw.Sub(tx.Info.Class, unspent) })
	}
	return nil
}
