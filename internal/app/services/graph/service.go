// Package graph layers parent/child token linking over the token ledger. A
// linked child token is held in linker custody; authority over a subtree
// follows ownership of its root token. Ancestor walks are iterative with
// cycle detection, so adversarial link depth cannot exhaust the stack.
package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/domain/graph"
	"github.com/R3E-Network/token_engine/internal/app/domain/token"
	"github.com/R3E-Network/token_engine/internal/app/events"
	"github.com/R3E-Network/token_engine/internal/app/storage"
	"github.com/R3E-Network/token_engine/pkg/logger"
)

var (
	ErrParentCollectionNotFound = errors.New("parent collection not found")
	ErrRootTokenNotFound        = errors.New("root token not found")
	ErrTokenNotFound            = errors.New("token not found")
	ErrPermissionDenied         = errors.New("permission denied")
	ErrLinkToSelfOrDescendant   = errors.New("cannot link a token to itself or its descendant")
	ErrRecoverUnlinkedToken     = errors.New("cannot recover a token that is not linked")
	ErrRecoverParentToken       = errors.New("cannot recover a token that still has children")
	ErrLinkCycle                = errors.New("link graph contains a cycle")
)

// TokenLedger is the slice of the token service the linker consumes.
type TokenLedger interface {
	GetToken(ctx context.Context, collectionID string, startIdx uint64) (token.Range, error)
	TransferNonFungible(ctx context.Context, who, receiver, collectionID string, startIdx, amount uint64) error
}

// CollectionRegistry checks collection existence.
type CollectionRegistry interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Service is the graph linker. Account is the custody account holding every
// linked child token.
type Service struct {
	tokens   TokenLedger
	registry CollectionRegistry
	store    storage.GraphStore
	account  string
	events   *events.Recorder
	log      *logger.Logger
}

// New constructs a graph linker service.
func New(tokens TokenLedger, registry CollectionRegistry, store storage.GraphStore, rec *events.Recorder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("graph")
	}
	return &Service{
		tokens:   tokens,
		registry: registry,
		store:    store,
		account:  chain.ModuleAccount("graph"),
		events:   rec,
		log:      log,
	}
}

// Account returns the linker's custody account.
func (s *Service) Account() string {
	return s.account
}

// Link attaches child under parent. An unlinked child must be owned by the
// caller and moves into linker custody; re-parenting an already linked child
// requires ownership of the child's current root and moves no tokens.
func (s *Service) Link(ctx context.Context, who string, child, parent graph.Node) error {
	exists, err := s.registry.Exists(ctx, parent.CollectionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrParentCollectionNotFound
	}
	if child == parent {
		return ErrLinkToSelfOrDescendant
	}
	ancestor, err := s.IsAncestor(ctx, child, parent)
	if err != nil {
		return err
	}
	if ancestor {
		return ErrLinkToSelfOrDescendant
	}

	existing, err := s.store.GetLink(ctx, child)
	switch {
	case err == nil:
		// Re-parent: authority follows the child's current root.
		rootOwner, _, err := s.FindRootOwner(ctx, child)
		if err != nil {
			return err
		}
		if rootOwner != who {
			return ErrPermissionDenied
		}
		existing.Parent = parent
		if err := s.store.PutLink(ctx, existing); err != nil {
			return fmt.Errorf("store link: %w", err)
		}
	case errors.Is(err, storage.ErrNotFound):
		rng, err := s.tokens.GetToken(ctx, child.CollectionID, child.TokenID)
		if err != nil {
			return fmt.Errorf("resolve child token: %w", err)
		}
		if rng.Owner != who {
			return ErrPermissionDenied
		}
		// A one-unit transfer moves the record's top id into custody.
		escrowedID := rng.EndIdx
		if err := s.tokens.TransferNonFungible(ctx, who, s.account, child.CollectionID, child.TokenID, 1); err != nil {
			return fmt.Errorf("escrow child token: %w", err)
		}
		link := graph.Link{Child: child, Parent: parent, EscrowedID: escrowedID}
		if err := s.store.PutLink(ctx, link); err != nil {
			return fmt.Errorf("store link: %w", err)
		}
	default:
		return err
	}

	s.events.Emit("graph.linked", map[string]any{
		"child_collection":  child.CollectionID,
		"child_token":       child.TokenID,
		"parent_collection": parent.CollectionID,
		"parent_token":      parent.TokenID,
		"operator":          who,
	})
	s.log.WithField("child_collection", child.CollectionID).
		WithField("parent_collection", parent.CollectionID).
		Info("token linked")
	return nil
}

// Recover detaches a leaf child token and returns it from custody to the
// caller, who must own the subtree's root.
func (s *Service) Recover(ctx context.Context, who string, child graph.Node) error {
	link, err := s.store.GetLink(ctx, child)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrRecoverUnlinkedToken
	}
	if err != nil {
		return err
	}

	hasChildren, err := s.store.HasChildren(ctx, child)
	if err != nil {
		return err
	}
	if hasChildren {
		return ErrRecoverParentToken
	}

	rootOwner, _, err := s.FindRootOwner(ctx, child)
	if err != nil {
		return err
	}
	if rootOwner != who {
		return ErrPermissionDenied
	}

	if err := s.tokens.TransferNonFungible(ctx, s.account, who, child.CollectionID, link.EscrowedID, 1); err != nil {
		return fmt.Errorf("release child token: %w", err)
	}
	if err := s.store.DeleteLink(ctx, child); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}

	s.events.Emit("graph.recovered", map[string]any{
		"child_collection": child.CollectionID,
		"child_token":      child.TokenID,
		"operator":         who,
	})
	return nil
}

// FindRootOwner walks up from node to its unlinked root and returns the
// root's owner and the root node itself.
func (s *Service) FindRootOwner(ctx context.Context, node graph.Node) (string, graph.Node, error) {
	current := node
	visited := map[graph.Node]struct{}{}
	for {
		if _, seen := visited[current]; seen {
			return "", graph.Node{}, ErrLinkCycle
		}
		visited[current] = struct{}{}

		link, err := s.store.GetLink(ctx, current)
		if errors.Is(err, storage.ErrNotFound) {
			break
		}
		if err != nil {
			return "", graph.Node{}, err
		}
		current = link.Parent
	}

	rng, err := s.tokens.GetToken(ctx, current.CollectionID, current.TokenID)
	if err != nil {
		return "", graph.Node{}, ErrRootTokenNotFound
	}
	return rng.Owner, current, nil
}

// IsAncestor reports whether candidate appears on the ancestor chain of
// node, excluding node itself.
func (s *Service) IsAncestor(ctx context.Context, candidate, node graph.Node) (bool, error) {
	current := node
	visited := map[graph.Node]struct{}{}
	for {
		if _, seen := visited[current]; seen {
			return false, ErrLinkCycle
		}
		visited[current] = struct{}{}

		link, err := s.store.GetLink(ctx, current)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if link.Parent == candidate {
			return true, nil
		}
		current = link.Parent
	}
}
