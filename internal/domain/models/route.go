package models

// RouteType identifies the execution venue class for a fused signal.
type RouteType string

const (
	RouteCEXSpot RouteType = "cex_spot"
	RouteHLPerp  RouteType = "hl_perp"
	RouteDEX     RouteType = "dex"
	RouteNone    RouteType = "no_route"
)

// RouteInfo carries the venue-specific payload of a routed signal.
type RouteInfo struct {
	Exchange        string `json:"exchange,omitempty" validate:"required_if=Venue cex_spot"`
	Pair            string `json:"pair,omitempty"`
	Venue           string `json:"venue" validate:"required"`
	ContractAddress string `json:"contract_address,omitempty" validate:"required_if=Venue dex_resolved"`
	Chain           string `json:"chain,omitempty"`
	Speculative     bool   `json:"speculative,omitempty"` // dex entry with unresolved contract
}

// RoutedSignal is the routing verdict for one SuperEvent, published to the
// per-venue route topic once the route lock is held.
type RoutedSignal struct {
	RouteID    string      `json:"route_id" validate:"required"`
	RouteType  RouteType   `json:"route_type" validate:"required,oneof=cex_spot hl_perp dex no_route"`
	Symbol     string      `json:"symbol" validate:"required"`
	Score      float64     `json:"score"`
	Reason     string      `json:"reason"`
	RouteInfo  *RouteInfo  `json:"route_info,omitempty"`
	Signal     *SuperEvent `json:"signal,omitempty"`
	RoutedAt   int64       `json:"routed_at" validate:"required,gt=0"` // ms epoch
	LockTTLSec int         `json:"lock_ttl_sec,omitempty"`
}
