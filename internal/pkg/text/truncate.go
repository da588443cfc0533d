// Package text 提供面向展示的字符串处理。
package text

import "unicode/utf8"

// Truncate 按字节上限截断并追加 "..."，不会切断多字节字符。
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
