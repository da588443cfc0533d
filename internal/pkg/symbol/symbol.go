package symbol

import (
	"strings"
)

// Symbol 表示交易对的基础币与计价币。
type Symbol struct {
	Base  string
	Quote string
}

// Display 返回 BASE/QUOTE 形式，用于通知与页面展示。
func (s Symbol) Display() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

// Binance 返回交易所下单使用的连写形式。
func (s Symbol) Binance() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + s.Quote
}

var quoteCurrencies = []string{"USDT", "BUSD", "USDC", "TUSD", "BTC", "ETH", "BNB"}

// Parse 识别 BTCUSDT / BTC/USDT / BTC/USDT:USDT / BINANCE:BTCUSDT.P 等写法。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}
	// TradingView 行情前缀与永续后缀
	if idx := strings.Index(s, ":"); idx >= 0 && !strings.Contains(s[:idx], "/") {
		s = s[idx+1:]
	} else if idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSuffix(s, ".P")

	if parts := strings.SplitN(s, "/", 2); len(parts) == 2 {
		return Symbol{
			Base:  strings.TrimSpace(parts[0]),
			Quote: strings.TrimSpace(parts[1]),
		}
	}
	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}
	return Symbol{}
}

// Normalize 返回交易所连写形式；无法识别时退化为去空格大写。
func Normalize(s string) string {
	if out := Parse(s).Binance(); out != "" {
		return out
	}
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}
