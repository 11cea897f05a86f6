package alertcache

import (
	"fmt"
	"strings"
)

// Key names are a wire contract: the event-matching runtime and other services
// read these keys literally. Do not change the formats.
const (
	// ActiveSetKey holds the ids of currently-enabled alerts.
	ActiveSetKey = "alerts:active"

	// PeriodicScheduleKey and OneTimeScheduleKey are sorted sets keyed by
	// alert id with the next/scheduled unix timestamp as score.
	PeriodicScheduleKey = "periodic_schedule"
	OneTimeScheduleKey  = "onetime_schedule"

	recordKeyPrefix     = "alert:"
	addressKeyPrefix    = "alerts:address:"
	contractKeyPrefix   = "alerts:contract:"
	chainEventKeyPrefix = "alerts:chain:"
)

// IndexKind selects between the two per-address lookup dimensions.
type IndexKind string

const (
	IndexAddress  IndexKind = "address"
	IndexContract IndexKind = "contract"
)

// chainAliases maps known chain identifiers to their canonical uppercase prefix.
var chainAliases = map[string]string{
	"ethereum":  "ETH",
	"eth":       "ETH",
	"polygon":   "MATIC",
	"matic":     "MATIC",
	"bsc":       "BSC",
	"binance":   "BSC",
	"arbitrum":  "ARB",
	"arb":       "ARB",
	"optimism":  "OP",
	"op":        "OP",
	"avalanche": "AVAX",
	"avax":      "AVAX",
	"base":      "BASE",
	"solana":    "SOL",
	"sol":       "SOL",
}

// NormalizeChainPrefix maps a chain identifier to its canonical uppercase prefix.
// Unknown non-empty identifiers are upper-cased verbatim. Empty input defaults
// to "ETH" — legacy behavior that can misroute alerts into the wrong chain's
// index; kept for compatibility with data already keyed this way.
func NormalizeChainPrefix(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "ETH"
	}
	if canon, ok := chainAliases[strings.ToLower(raw)]; ok {
		return canon
	}
	return strings.ToUpper(raw)
}

// TargetKey is a parsed canonical target string "{CHAIN}:{network}:{address}[:extra]".
// Extra segments carry NFT token-id variants; address/contract index derivation
// ignores them.
type TargetKey struct {
	Chain   string
	Network string
	Address string
	Extra   []string
}

// ParseTargetKey splits a canonical target string into its components.
// At least chain, network and address are required.
func ParseTargetKey(raw string) (TargetKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 {
		return TargetKey{}, WithContext(ErrInvalidTargetKey, map[string]interface{}{
			"target": raw,
			"reason": "expected at least chain:network:address",
		})
	}
	tk := TargetKey{
		Chain:   parts[0],
		Network: parts[1],
		Address: parts[2],
	}
	if tk.Chain == "" || tk.Network == "" || tk.Address == "" {
		return TargetKey{}, WithContext(ErrInvalidTargetKey, map[string]interface{}{
			"target": raw,
			"reason": "empty component",
		})
	}
	if len(parts) > 3 {
		tk.Extra = parts[3:]
	}
	return tk, nil
}

// DeriveIndexKey builds the store key for one lookup dimension:
// alerts:{address|contract}:{CANON_CHAIN}:{network_lower}:{address_lower}
func DeriveIndexKey(kind IndexKind, chain, network, address string) string {
	return fmt.Sprintf("alerts:%s:%s:%s:%s",
		kind,
		NormalizeChainPrefix(chain),
		strings.ToLower(network),
		strings.ToLower(address),
	)
}

// RecordKey returns the Cache Record hash key for an alert id.
func RecordKey(id string) string {
	return recordKeyPrefix + id
}

// ChainEventKey returns the membership set key for one (chain:network, event) pair.
func ChainEventKey(chain, network, event string) string {
	return fmt.Sprintf("%s%s:%s:%s",
		chainEventKeyPrefix,
		NormalizeChainPrefix(chain),
		strings.ToLower(network),
		event,
	)
}

// scheduleKeyFor returns the schedule sorted-set key for a trigger type,
// or "" when the trigger is not scheduled.
func scheduleKeyFor(t TriggerType) string {
	switch t {
	case TriggerPeriodic:
		return PeriodicScheduleKey
	case TriggerOneTime:
		return OneTimeScheduleKey
	default:
		return ""
	}
}

// indexKindFor maps an alert type to its lookup dimension. Network and
// protocol alerts have no per-address index.
func indexKindFor(t AlertType) (IndexKind, bool) {
	switch t {
	case AlertWallet:
		return IndexAddress, true
	case AlertToken, AlertContract, AlertNFT:
		return IndexContract, true
	default:
		return "", false
	}
}
