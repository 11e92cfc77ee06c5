// Package server hosts a runtime over a storage backend and serves it
// as an rtcore.Connection: it resolves block hashes to committed
// state, keeps block builder sessions and commits finished blocks.
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/blockberries/rtcore"
	"github.com/blockberries/rtcore/storage"
	"github.com/blockberries/rtcore/types"
)

var (
	// ErrUnknownBuilder is returned for a builder id that was never
	// opened or has already been finalized.
	ErrUnknownBuilder = errors.New("server: unknown block builder")
	// ErrNoGenesis is returned before Init has committed genesis.
	ErrNoGenesis = errors.New("server: genesis not initialized")
)

var _ rtcore.Connection = (*Server)(nil)

// Config configures a Server.
type Config struct {
	Logger *zap.Logger
	// Registerer receives the server metrics. Nil leaves them
	// unregistered.
	Registerer prometheus.Registerer
}

// blockWeigher is implemented by runtimes that can report the weight
// consumed by a committed block.
type blockWeigher interface {
	BlockWeight(r storage.Reader) types.Weight
}

// Server serves a runtime over a storage backend. Queries and builder
// sessions are safe for concurrent use; each builder is used by one
// caller at a time.
type Server struct {
	rt      rtcore.Runtime
	backend storage.Backend
	log     *zap.Logger
	metrics *Metrics
	name    string

	// Optional interfaces (nil if not supported).
	sessionKeys  rtcore.SessionKeys
	babe         rtcore.BabeAPI
	grandpa      rtcore.GrandpaAPI
	babeEquiv    rtcore.BabeEquivocation
	grandpaEquiv rtcore.GrandpaEquivocation
	weigher      blockWeigher

	mu       sync.Mutex
	genesis  *types.Header
	builders map[rtcore.BuilderID]*session
}

type session struct {
	mu      sync.Mutex
	parent  storage.Snapshot
	builder rtcore.BlockBuilder
}

// New wraps rt and backend. It fails if rt declares an optional API in
// its version that it does not implement.
func New(rt rtcore.Runtime, backend storage.Backend, cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	version := rt.Version()
	s := &Server{
		rt:       rt,
		backend:  backend,
		log:      cfg.Logger.With(zap.String("runtime", version.SpecName)),
		metrics:  NewMetrics(cfg.Registerer),
		name:     version.SpecName,
		builders: make(map[rtcore.BuilderID]*session),
	}
	if err := s.discoverCapabilities(version); err != nil {
		return nil, err
	}
	return s, nil
}

// discoverCapabilities checks which optional interfaces the runtime
// implements against the APIs its version declares.
func (s *Server) discoverCapabilities(v types.RuntimeVersion) error {
	s.sessionKeys, _ = s.rt.(rtcore.SessionKeys)
	s.babe, _ = s.rt.(rtcore.BabeAPI)
	s.grandpa, _ = s.rt.(rtcore.GrandpaAPI)
	s.babeEquiv, _ = s.rt.(rtcore.BabeEquivocation)
	s.grandpaEquiv, _ = s.rt.(rtcore.GrandpaEquivocation)
	s.weigher, _ = s.rt.(blockWeigher)

	caps := []struct {
		api         string
		implemented bool
		clear       func()
	}{
		{rtcore.APISessionKeys, s.sessionKeys != nil, func() { s.sessionKeys = nil }},
		{rtcore.APIBabe, s.babe != nil, func() { s.babe, s.babeEquiv = nil, nil }},
		{rtcore.APIGrandpa, s.grandpa != nil, func() { s.grandpa, s.grandpaEquiv = nil, nil }},
	}
	for _, c := range caps {
		_, declared := v.APIVersion(c.api)
		switch {
		case declared && !c.implemented:
			return fmt.Errorf("server: runtime declares %s but does not implement it", c.api)
		case !declared && c.implemented:
			s.log.Warn("runtime implements an undeclared API; it will not be used", zap.String("api", c.api))
			c.clear()
		}
	}
	return nil
}

// Init builds genesis and commits it unless the backend already holds
// it, and returns the genesis header.
func (s *Server) Init(ctx context.Context) (types.Header, error) {
	res, err := s.rt.BuildGenesis(ctx)
	if err != nil {
		return types.Header{}, fmt.Errorf("server: build genesis: %w", err)
	}
	hash := res.Hash()
	snap, err := s.backend.At(hash)
	switch {
	case err == nil:
		snap.Release()
		s.log.Info("genesis already committed", zap.Stringer("hash", hash))
	case errors.Is(err, storage.ErrUnknownBlock):
		err := s.backend.Commit(types.Hash{}, hash, res.Changes)
		if errors.Is(err, storage.ErrNotHead) {
			// A reopened backend that retains only recent states.
			s.log.Info("backend holds a later head; genesis state not retained", zap.Stringer("hash", hash))
			break
		}
		if err != nil {
			return types.Header{}, fmt.Errorf("server: commit genesis: %w", err)
		}
		s.log.Info("genesis committed",
			zap.Stringer("hash", hash),
			zap.Stringer("state_root", res.Header.StateRoot))
	default:
		return types.Header{}, err
	}

	s.mu.Lock()
	s.genesis = &res.Header
	s.mu.Unlock()
	return res.Header, nil
}

func (s *Server) Version(context.Context) (types.RuntimeVersion, error) {
	return s.rt.Version(), nil
}

func (s *Server) Genesis(context.Context) (types.Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.genesis == nil {
		return types.Header{}, ErrNoGenesis
	}
	return *s.genesis, nil
}

// ExecuteBlock executes block on its parent and commits it under the
// hash of the header as supplied.
func (s *Server) ExecuteBlock(ctx context.Context, block types.Block) (types.Header, error) {
	parent, err := s.backend.At(block.Header.ParentHash)
	if err != nil {
		return types.Header{}, err
	}
	defer parent.Release()

	res, err := s.rt.ExecuteBlock(ctx, parent, block)
	if err == nil {
		err = readErr(parent)
	}
	if err == nil {
		err = s.commit(parent.Block(), block.Header.Hash(), res.Changes)
	}
	s.metrics.blocks.WithLabelValues(s.name, "execute", outcome(err)).Inc()
	if err != nil {
		s.log.Warn("block import failed",
			zap.Uint32("number", uint32(block.Header.Number)),
			zap.Stringer("parent", block.Header.ParentHash),
			zap.Error(err))
		return types.Header{}, err
	}
	return res.Header, nil
}

// InitializeBlock opens a builder on header.ParentHash. The parent
// snapshot is held until the builder is finalized.
func (s *Server) InitializeBlock(ctx context.Context, header types.Header) (rtcore.BuilderID, error) {
	parent, err := s.backend.At(header.ParentHash)
	if err != nil {
		return "", err
	}
	b, err := s.rt.InitializeBlock(ctx, parent, header)
	if err == nil {
		err = readErr(parent)
	}
	if err != nil {
		parent.Release()
		return "", err
	}
	id := rtcore.BuilderID(uuid.NewString())
	s.mu.Lock()
	s.builders[id] = &session{parent: parent, builder: b}
	s.mu.Unlock()
	s.log.Debug("builder opened", zap.String("id", string(id)), zap.Uint32("number", uint32(header.Number)))
	return id, nil
}

func (s *Server) ApplyExtrinsic(ctx context.Context, id rtcore.BuilderID, xt types.Extrinsic) (types.ApplyExtrinsicResult, error) {
	sess, err := s.session(id)
	if err != nil {
		return types.ApplyExtrinsicResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	res, err := sess.builder.ApplyExtrinsic(ctx, xt)
	if err == nil {
		err = readErr(sess.parent)
	}
	label := "error"
	switch {
	case err != nil:
	case res.Succeeded():
		label = "success"
	case res.Applied():
		label = "failed"
	default:
		label = "invalid"
	}
	s.metrics.extrinsics.WithLabelValues(s.name, label).Inc()
	return res, err
}

// FinalizeBlock completes the builder, commits the block and closes
// the session whatever the outcome.
func (s *Server) FinalizeBlock(ctx context.Context, id rtcore.BuilderID) (types.Header, error) {
	sess, err := s.session(id)
	if err != nil {
		return types.Header{}, err
	}
	s.mu.Lock()
	delete(s.builders, id)
	s.mu.Unlock()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	defer sess.parent.Release()

	res, err := sess.builder.FinalizeBlock(ctx)
	if err == nil {
		err = readErr(sess.parent)
	}
	if err == nil {
		err = s.commit(sess.parent.Block(), res.Hash(), res.Changes)
	}
	s.metrics.blocks.WithLabelValues(s.name, "build", outcome(err)).Inc()
	if err != nil {
		return types.Header{}, err
	}
	s.log.Debug("block built",
		zap.Uint32("number", uint32(res.Header.Number)),
		zap.Stringer("hash", res.Hash()))
	return res.Header, nil
}

func (s *Server) session(id rtcore.BuilderID) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.builders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBuilder, id)
	}
	return sess, nil
}

func (s *Server) commit(parent, hash types.Hash, changes storage.ChangeSet) error {
	if err := s.backend.Commit(parent, hash, changes); err != nil {
		return fmt.Errorf("server: commit %s: %w", hash, err)
	}
	if s.weigher != nil {
		if snap, err := s.backend.At(hash); err == nil {
			s.metrics.blockWeight.WithLabelValues(s.name).Set(float64(s.weigher.BlockWeight(snap)))
			snap.Release()
		}
	}
	return nil
}

// at runs fn on the post-state of block hash.
func at[T any](s *Server, hash types.Hash, fn func(storage.Snapshot) (T, error)) (T, error) {
	snap, err := s.backend.At(hash)
	if err != nil {
		var zero T
		return zero, err
	}
	defer snap.Release()
	out, err := fn(snap)
	if err == nil {
		err = readErr(snap)
	}
	return out, err
}

// readErr reports a failed read of snap, which makes any result
// computed from it untrustworthy.
func readErr(snap storage.Snapshot) error {
	if err := snap.Err(); err != nil {
		return fmt.Errorf("server: state of %s: %w", snap.Block(), err)
	}
	return nil
}

func (s *Server) Metadata(ctx context.Context) (types.OpaqueMetadata, error) {
	return s.rt.Metadata(ctx)
}

func (s *Server) InherentExtrinsics(ctx context.Context, hash types.Hash, data types.InherentData) ([]types.Extrinsic, error) {
	return at(s, hash, func(snap storage.Snapshot) ([]types.Extrinsic, error) {
		return s.rt.InherentExtrinsics(ctx, snap, data)
	})
}

func (s *Server) CheckInherents(ctx context.Context, hash types.Hash, block types.Block, data types.InherentData) (types.CheckInherentsResult, error) {
	return at(s, hash, func(snap storage.Snapshot) (types.CheckInherentsResult, error) {
		return s.rt.CheckInherents(ctx, snap, block, data)
	})
}

func (s *Server) RandomSeed(ctx context.Context, hash types.Hash) (types.Hash, error) {
	return at(s, hash, func(snap storage.Snapshot) (types.Hash, error) {
		return s.rt.RandomSeed(ctx, snap)
	})
}

func (s *Server) ValidateTransaction(ctx context.Context, hash types.Hash, source types.TransactionSource, xt types.Extrinsic) (types.TransactionValidity, error) {
	res, err := at(s, hash, func(snap storage.Snapshot) (types.TransactionValidity, error) {
		return s.rt.ValidateTransaction(ctx, snap, source, xt)
	})
	if err == nil {
		result := "valid"
		if res.Error != nil {
			result = "invalid"
			if _, unknown := res.Error.UnknownKind(); unknown {
				result = "unknown"
			}
		}
		s.metrics.validations.WithLabelValues(s.name, result).Inc()
	}
	return res, err
}

func (s *Server) Storage(_ context.Context, hash types.Hash, key []byte) ([]byte, error) {
	return at(s, hash, func(snap storage.Snapshot) ([]byte, error) {
		v, _ := snap.Get(key)
		return v, nil
	})
}

// --- Capability-gated optional methods ---

func (s *Server) GenerateSessionKeys(ctx context.Context, seed []byte) ([]byte, error) {
	if s.sessionKeys == nil {
		return nil, rtcore.ErrUnsupported
	}
	return s.sessionKeys.GenerateSessionKeys(ctx, seed)
}

func (s *Server) DecodeSessionKeys(ctx context.Context, encoded []byte) ([]types.SessionKey, error) {
	if s.sessionKeys == nil {
		return nil, rtcore.ErrUnsupported
	}
	return s.sessionKeys.DecodeSessionKeys(ctx, encoded)
}

func (s *Server) BabeConfiguration(ctx context.Context, hash types.Hash) (types.EpochConfiguration, error) {
	if s.babe == nil {
		return types.EpochConfiguration{}, rtcore.ErrUnsupported
	}
	return at(s, hash, func(snap storage.Snapshot) (types.EpochConfiguration, error) {
		return s.babe.BabeConfiguration(ctx, snap)
	})
}

func (s *Server) CurrentEpochStart(ctx context.Context, hash types.Hash) (types.Slot, error) {
	if s.babe == nil {
		return 0, rtcore.ErrUnsupported
	}
	return at(s, hash, func(snap storage.Snapshot) (types.Slot, error) {
		return s.babe.CurrentEpochStart(ctx, snap)
	})
}

func (s *Server) GrandpaAuthorities(ctx context.Context, hash types.Hash) (types.AuthoritySet, error) {
	if s.grandpa == nil {
		return types.AuthoritySet{}, rtcore.ErrUnsupported
	}
	return at(s, hash, func(snap storage.Snapshot) (types.AuthoritySet, error) {
		return s.grandpa.GrandpaAuthorities(ctx, snap)
	})
}

// GenerateKeyOwnershipProof routes to the equivocation capability of
// engine. slotOrSet is a slot for BABE and a set id for GRANDPA.
func (s *Server) GenerateKeyOwnershipProof(ctx context.Context, hash types.Hash, engine types.ConsensusEngineID, slotOrSet uint64, authority types.AuthorityID) (types.KeyOwnershipProof, error) {
	switch {
	case engine == types.BabeEngineID && s.babeEquiv != nil:
		return at(s, hash, func(snap storage.Snapshot) (types.KeyOwnershipProof, error) {
			return s.babeEquiv.GenerateBabeKeyOwnershipProof(ctx, snap, types.Slot(slotOrSet), authority)
		})
	case engine == types.GrandpaEngineID && s.grandpaEquiv != nil:
		return at(s, hash, func(snap storage.Snapshot) (types.KeyOwnershipProof, error) {
			return s.grandpaEquiv.GenerateGrandpaKeyOwnershipProof(ctx, snap, slotOrSet, authority)
		})
	}
	return nil, rtcore.ErrUnsupported
}

func (s *Server) SubmitEquivocationReport(ctx context.Context, hash types.Hash, engine types.ConsensusEngineID, proof types.EquivocationProof, owner types.KeyOwnershipProof) (types.Extrinsic, error) {
	switch {
	case engine == types.BabeEngineID && s.babeEquiv != nil:
		return at(s, hash, func(snap storage.Snapshot) (types.Extrinsic, error) {
			return s.babeEquiv.SubmitBabeEquivocationReport(ctx, snap, proof, owner)
		})
	case engine == types.GrandpaEngineID && s.grandpaEquiv != nil:
		return at(s, hash, func(snap storage.Snapshot) (types.Extrinsic, error) {
			return s.grandpaEquiv.SubmitGrandpaEquivocationReport(ctx, snap, proof, owner)
		})
	}
	return types.Extrinsic{}, rtcore.ErrUnsupported
}

// Builders returns the number of open builder sessions.
func (s *Server) Builders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.builders)
}

// Close releases every open builder. The backend is owned by the
// caller and stays open.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.builders {
		sess.parent.Release()
		delete(s.builders, id)
	}
	return nil
}
