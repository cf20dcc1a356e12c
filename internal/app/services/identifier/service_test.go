package identifier

import (
	"context"
	"testing"

	"github.com/R3E-Network/token_engine/internal/app/chain"
	"github.com/R3E-Network/token_engine/internal/app/storage/memory"
)

func newService() *Service {
	return New(memory.New(), chain.FixedRandomness([]byte("seed")), chain.SHA256{}, nil)
}

func TestNonceIncrementMonotonic(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	prev := uint64(0)
	for i := 0; i < 10; i++ {
		n, err := svc.NonceIncrement(ctx)
		if err != nil {
			t.Fatalf("increment: %v", err)
		}
		if n != prev+1 {
			t.Fatalf("nonce %d, want %d", n, prev+1)
		}
		prev = n
	}
}

func TestGenerateIDUnique(t *testing.T) {
	ctx := context.Background()
	svc := newService()

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := svc.GenerateID(ctx, []byte("collection"))
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(id) != 64 {
			t.Fatalf("id length %d, want 64 hex chars", len(id))
		}
		if seen[id] {
			t.Fatalf("duplicate id %s despite distinct nonces", id)
		}
		seen[id] = true
	}
}

func TestGenerateScopedIDBindsCaller(t *testing.T) {
	ctx := context.Background()

	a, err := newService().GenerateScopedID(ctx, []byte("dao"), "alice")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := newService().GenerateScopedID(ctx, []byte("dao"), "bob")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if a == b {
		t.Fatal("ids for different callers must differ")
	}
}
