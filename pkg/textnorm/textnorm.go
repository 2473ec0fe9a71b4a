// Package textnorm 比较歌名和歌手名时使用的规范化
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key NFKC（全角转半角、合并组合字符）后做大小写折叠，并去掉空白
func Key(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, folded)
}

// Contains 规范化后 s 包含 substr
func Contains(s, substr string) bool {
	return strings.Contains(Key(s), Key(substr))
}

// Overlaps 规范化后任意一方包含另一方
func Overlaps(a, b string) bool {
	ka, kb := Key(a), Key(b)
	return strings.Contains(ka, kb) || strings.Contains(kb, ka)
}
