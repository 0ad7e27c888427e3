package idempotency

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/rumahku/billing/internal/types"
)

// Scope namespaces keys so two operations never collide
type Scope string

const (
	ScopeCheckout Scope = "checkout"
)

// CheckoutKey identifies a checkout attempt that may be reused while its
// transaction is still pending
type CheckoutKey struct {
	FamilyID      string
	TierID        string
	BillingPeriod types.BillingPeriod
	PromoCode     string
	Provider      types.PaymentProvider
}

// Generator derives deterministic idempotency keys
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Checkout returns the key under which a pending checkout is looked up
func (g *Generator) Checkout(k CheckoutKey) string {
	return g.key(ScopeCheckout,
		k.FamilyID,
		k.TierID,
		string(k.BillingPeriod),
		k.PromoCode,
		string(k.Provider),
	)
}

// key hashes length prefixed fields, so ("ab","c") and ("a","bc") differ
func (g *Generator) key(scope Scope, fields ...string) string {
	h := sha256.New()
	h.Write([]byte(scope))

	var size [4]byte
	for _, f := range fields {
		binary.BigEndian.PutUint32(size[:], uint32(len(f)))
		h.Write(size[:])
		h.Write([]byte(f))
	}

	return string(scope) + "_" + hex.EncodeToString(h.Sum(nil)[:12])
}
