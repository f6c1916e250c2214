// Package mailaddr 提供地址头解析，供 SMTP 与 Webhook 两条收件路径共用。
package mailaddr

import (
	"regexp"
	"strings"
)

// displayNamePattern 匹配 `Name <addr>` 形式的地址头。
// 尖括号内不允许再出现尖括号，畸形输入整体退化为裸地址。
var displayNamePattern = regexp.MustCompile(`^(.+?)\s*<([^<>]+)>$`)

// Split 将原始地址头拆分为裸地址与显示名。
//
// 支持的输入形式：
//   - `"Jane Doe" <jane@x.com>` → ("jane@x.com", "Jane Doe")
//   - `Jane Doe <jane@x.com>`   → ("jane@x.com", "Jane Doe")
//   - `jane@x.com`              → ("jane@x.com", "")
//
// 永不报错：无法解析的输入整体按裸地址处理，显示名为空。
func Split(raw string) (address, displayName string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}

	if m := displayNamePattern.FindStringSubmatch(raw); m != nil {
		displayName = strings.Trim(strings.TrimSpace(m[1]), `"`)
		address = strings.TrimSpace(m[2])
		return address, displayName
	}

	return raw, ""
}

// SplitRecipient 拆分收件人头。
//
// 收件人头可能是多个收件人的拼接形式（`a@x.com, Bob <b@y.com>`），
// 此时整体原样保留，拆分会丢失收件人；只有单收件人才按 Split 拆分。
func SplitRecipient(raw string) (address, displayName string) {
	raw = strings.TrimSpace(raw)
	if multipleRecipients(raw) {
		return raw, ""
	}
	return Split(raw)
}

// multipleRecipients 判断收件人头是否含多个收件人。
//
// 引号内的逗号属于显示名（`"Doe, Jane" <jane@x.com>`），
// 尖括号内的逗号属于地址字面量，都不算分隔符。
func multipleRecipients(raw string) bool {
	inQuotes := false
	inAngle := false
	angles := 0
	for _, r := range raw {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case '<':
			if !inQuotes {
				inAngle = true
				angles++
			}
		case '>':
			if !inQuotes {
				inAngle = false
			}
		case ',':
			if !inQuotes && !inAngle {
				return true
			}
		}
	}
	return angles > 1
}
