package system

import (
	"github.com/blockberries/rtcore/frame"
	"github.com/blockberries/rtcore/hashing"
	"github.com/blockberries/rtcore/types"
)

type RemarkArgs struct {
	Remark []byte `cramberry:"1"`
}

type FillBlockArgs struct {
	Ratio types.Perbill `cramberry:"1"`
}

type KeyValue struct {
	Key   []byte `cramberry:"1"`
	Value []byte `cramberry:"2"`
}

type SetStorageArgs struct {
	Items []KeyValue `cramberry:"1"`
}

type KillStorageArgs struct {
	Keys [][]byte `cramberry:"1"`
}

type KillPrefixArgs struct {
	Prefix  []byte `cramberry:"1"`
	Subkeys uint32 `cramberry:"2"`
}

func weighRemark(a RemarkArgs) types.DispatchInfo {
	return types.DispatchInfo{Weight: types.Weight(700_000 + len(a.Remark))}
}

func (m *Module) remark(ctx *frame.Context, origin frame.Origin, a RemarkArgs) (types.PostDispatchInfo, error) {
	if origin.Kind == frame.OriginNone {
		return frame.Fail(frame.ErrBadOrigin)
	}
	if origin.Kind == frame.OriginSigned {
		ctx.DepositEvent(ModuleName, EventRemarked, Remarked{
			Sender: origin.Who,
			Hash:   hashing.Blake2b256(a.Remark),
		})
	}
	return frame.Ok()
}

func (m *Module) weighFillBlock(a FillBlockArgs) types.DispatchInfo {
	return types.DispatchInfo{
		Weight: types.Weight(a.Ratio.Mul(uint64(m.cfg.BlockWeights.MaxBlock))),
		Class:  types.Operational,
	}
}

func (m *Module) fillBlock(*frame.Context, frame.Origin, FillBlockArgs) (types.PostDispatchInfo, error) {
	return frame.Ok()
}

func (m *Module) weighSetStorage(a SetStorageArgs) types.DispatchInfo {
	return types.DispatchInfo{
		Weight: m.cfg.BlockWeights.DB.ReadsWrites(0, uint64(len(a.Items))),
		Class:  types.Operational,
	}
}

func (m *Module) setStorage(ctx *frame.Context, _ frame.Origin, a SetStorageArgs) (types.PostDispatchInfo, error) {
	for _, kv := range a.Items {
		ctx.Store.Set(kv.Key, kv.Value)
	}
	return frame.Ok()
}

func (m *Module) weighKillStorage(a KillStorageArgs) types.DispatchInfo {
	return types.DispatchInfo{
		Weight: m.cfg.BlockWeights.DB.ReadsWrites(0, uint64(len(a.Keys))),
		Class:  types.Operational,
	}
}

func (m *Module) killStorage(ctx *frame.Context, _ frame.Origin, a KillStorageArgs) (types.PostDispatchInfo, error) {
	for _, k := range a.Keys {
		ctx.Store.Delete(k)
	}
	return frame.Ok()
}

func (m *Module) weighKillPrefix(a KillPrefixArgs) types.DispatchInfo {
	return types.DispatchInfo{
		Weight: m.cfg.BlockWeights.DB.ReadsWrites(0, uint64(a.Subkeys)),
		Class:  types.Operational,
	}
}

func (m *Module) killPrefix(ctx *frame.Context, _ frame.Origin, a KillPrefixArgs) (types.PostDispatchInfo, error) {
	ctx.Store.ClearPrefix(a.Prefix)
	return frame.Ok()
}
