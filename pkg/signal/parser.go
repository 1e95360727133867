// Package signal extracts trade directives from monitored channel text.
//
// The channel carries free-form chatter around the actual signals, so a text
// that matches no known layout is not an error, it is simply not a signal.
package signal

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/signalops/revbot/pkg/types"
)

type Action string

const (
	ActionOpen  Action = "open"
	ActionClose Action = "close"
)

// WildcardMarket marks a directive that applies to all of the user's open
// exposure rather than a single market. Close directives always carry it.
const WildcardMarket = "*"

// Signal is a parsed directive.
type Signal struct {
	Raw      string
	Action   Action
	Side     types.SideType
	Quantity int
	Market   string
}

// The upstream vocabulary: 开多 open long, 开空 open short, 平多 close long,
// 平空 close short.
var patterns = []*regexp.Regexp{
	// standard layout: [开空] 数量:1 市场:BTC-USDT-SWAP
	regexp.MustCompile(`\[(开空|平空|开多|平多)\]\s*数量:(\d+\.?\d*)\s*市场:([\w-]+)`),

	// spaced layout: 开空 1 BTC
	regexp.MustCompile(`(开空|平空|开多|平多)\s+(\d+\.?\d*)\s+([\w-]*)`),

	// compact layout: 开空1张BTC
	regexp.MustCompile(`(开空|平空|开多|平多)(\d+\.?\d*)张?\s*([\w-]*)`),
}

var vocabulary = map[string]struct {
	action Action
	side   types.SideType
}{
	"开多": {ActionOpen, types.SideTypeLong},
	"开空": {ActionOpen, types.SideTypeShort},
	"平多": {ActionClose, types.SideTypeLong},
	"平空": {ActionClose, types.SideTypeShort},
}

// Parse converts raw channel text into a Signal. It returns nil when the text
// matches no known layout.
func Parse(text string) *Signal {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}

	for _, pattern := range patterns {
		m := pattern.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}

		entry, ok := vocabulary[m[1]]
		if !ok {
			continue
		}

		quantity, err := strconv.ParseFloat(m[2], 64)
		if err != nil || quantity <= 0 {
			continue
		}

		s := &Signal{
			Raw:      text,
			Action:   entry.action,
			Side:     entry.side,
			Quantity: int(quantity),
			Market:   normalizeMarket(m[3]),
		}

		// A close directive is a global kill switch over all open exposure,
		// not a per-market operation.
		if s.Action == ActionClose {
			s.Market = WildcardMarket
		}

		return s
	}

	return nil
}

func normalizeMarket(token string) string {
	market := strings.ToUpper(strings.TrimSpace(token))
	if market == "" || market == "BTC" {
		return "BTC-USDT-SWAP"
	}

	if !strings.Contains(market, "-") {
		market = market + "-USDT-SWAP"
	}
	if !strings.HasSuffix(market, "-SWAP") {
		market = market + "-SWAP"
	}

	return market
}
