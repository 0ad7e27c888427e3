package types

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/teris-io/shortid"
)

// GenerateUUID returns a k-sortable unique identifier
func GenerateUUID() string {
	return ulid.Make().String()
}

// GenerateUUIDWithPrefix returns a k-sortable unique identifier
// with a prefix ex promo_01HZX4W4B4E3M9C3Q6K7T1N2PA
func GenerateUUIDWithPrefix(prefix string) string {
	if prefix == "" {
		return GenerateUUID()
	}
	return fmt.Sprintf("%s_%s", prefix, GenerateUUID())
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

// GenerateShortID returns an uppercase short id without separators, capped at n characters.
func GenerateShortID(n int) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		// ulid entropy is a safe fallback, the tail is the random part
		id = ulid.Make().String()
		id = id[len(id)-n:]
	}
	id = strings.NewReplacer("-", "", "_", "").Replace(id)
	if len(id) > n {
		id = id[:n]
	}
	return strings.ToUpper(id)
}

// GenerateOrderID returns a gateway facing order id, e.g. ORDER-1718000000000-K3J9XQ2A
func GenerateOrderID(now time.Time) string {
	return fmt.Sprintf("%s-%d-%s", ORDER_ID_PREFIX, now.UnixMilli(), GenerateShortID(8))
}

const (
	// Prefixes for all domains and entities

	UUID_PREFIX_PROMO_CODE           = "promo"
	UUID_PREFIX_PROMO_REDEMPTION     = "redeem"
	UUID_PREFIX_PAYMENT_TRANSACTION  = "pay"
	UUID_PREFIX_SUBSCRIPTION         = "subs"
	UUID_PREFIX_SUBSCRIPTION_HISTORY = "subs_hist"
	UUID_PREFIX_WEBHOOK_EVENT        = "webhook"

	ORDER_ID_PREFIX = "ORDER"
)
