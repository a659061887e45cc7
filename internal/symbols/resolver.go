package symbols

import (
	"fmt"
	"sort"
	"strings"

	"ohlcv-collector/internal/exchange"
)

// Pair is a logical asset split into its base and quote currencies.
// Assets are written "BASE/QUOTE", e.g. "BTC/USDT" or "BTC/KRW".
type Pair struct {
	Base  string
	Quote string
}

func ParseAsset(asset string) (Pair, error) {
	base, quote, ok := strings.Cut(asset, "/")
	base = strings.ToUpper(strings.TrimSpace(base))
	quote = strings.ToUpper(strings.TrimSpace(quote))
	if !ok || base == "" || quote == "" {
		return Pair{}, fmt.Errorf("asset %q is not of the form BASE/QUOTE", asset)
	}
	return Pair{Base: base, Quote: quote}, nil
}

// rule describes one exchange's native symbol format: how base and
// quote join, base-currency respellings, and which quote currencies the
// exchange lists at all. A nil quote set means any quote is accepted as
// written.
type rule struct {
	join    func(base, quote string) string
	aliases map[string]string
	quotes  map[string]bool
}

func (r rule) symbol(p Pair) (string, bool) {
	if r.quotes != nil && !r.quotes[p.Quote] {
		return "", false
	}
	base := p.Base
	if alias, ok := r.aliases[base]; ok {
		base = alias
	}
	return r.join(base, p.Quote), true
}

var rules = map[string]rule{
	"binance": {
		join: func(b, q string) string { return b + q },
	},
	"bybit": {
		join: func(b, q string) string { return b + q },
	},
	"kraken": {
		join:    func(b, q string) string { return b + q },
		aliases: map[string]string{"BTC": "XBT", "DOGE": "XDG"},
	},
	"coinbase": {
		join: func(b, q string) string { return b + "-" + q },
	},
	"kucoin": {
		join: func(b, q string) string { return b + "-" + q },
	},
	"upbit": {
		join:   func(b, q string) string { return q + "-" + b },
		quotes: map[string]bool{"KRW": true, "USDT": true, "BTC": true},
	},
}

// Resolver maps (asset, exchange) to the exchange's native symbol. The
// table is assembled once at startup from the built-in rules plus
// configured overrides; Resolve is a pure lookup and never touches the
// network.
type Resolver struct {
	overrides map[string]map[string]string
}

// New builds a resolver. overrides is exchange -> asset -> native
// symbol and wins over the built-in rules, so odd listings can be
// pinned from configuration.
func New(overrides map[string]map[string]string) *Resolver {
	normalized := make(map[string]map[string]string, len(overrides))
	for ex, mapping := range overrides {
		ex = strings.ToLower(strings.TrimSpace(ex))
		inner := make(map[string]string, len(mapping))
		for asset, symbol := range mapping {
			inner[strings.ToUpper(strings.TrimSpace(asset))] = symbol
		}
		normalized[ex] = inner
	}
	return &Resolver{overrides: normalized}
}

// Resolve returns the native symbol for asset on the named exchange, or
// an Unsupported error when no mapping exists.
func (r *Resolver) Resolve(asset, exchangeID string) (string, error) {
	exchangeID = strings.ToLower(exchangeID)
	pair, err := ParseAsset(asset)
	if err != nil {
		return "", exchange.WrapError(exchange.KindUnsupported, exchangeID, "bad asset", err)
	}
	if mapping, ok := r.overrides[exchangeID]; ok {
		if symbol, ok := mapping[pair.Base+"/"+pair.Quote]; ok {
			return symbol, nil
		}
	}
	rl, ok := rules[exchangeID]
	if !ok {
		return "", exchange.NewError(exchange.KindUnsupported, exchangeID, fmt.Sprintf("no symbol rules for exchange %q", exchangeID))
	}
	symbol, ok := rl.symbol(pair)
	if !ok {
		return "", exchange.NewError(exchange.KindUnsupported, exchangeID, fmt.Sprintf("asset %s is not listed", asset))
	}
	return symbol, nil
}

// Supported reports the exchanges that can serve the asset, sorted for
// stable output.
func (r *Resolver) Supported(asset string) []string {
	var out []string
	for ex := range rules {
		if _, err := r.Resolve(asset, ex); err == nil {
			out = append(out, ex)
		}
	}
	for ex := range r.overrides {
		if _, known := rules[ex]; known {
			continue
		}
		if _, err := r.Resolve(asset, ex); err == nil {
			out = append(out, ex)
		}
	}
	sort.Strings(out)
	return out
}
