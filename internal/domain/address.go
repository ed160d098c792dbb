package domain

import (
	"fmt"
	"strings"
	"time"
)

// SanitizeLocalPart 将用户期望的邮箱名清洗为合法的本地部分：
// 统一转小写，仅保留字母、数字、点和连字符；清洗后为空时退回 fallback。
func SanitizeLocalPart(name, fallback string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}

// BuildAddress 拼装完整邮箱地址。本地部分后附加秒级时间戳，
// 保证同名请求生成的地址彼此不同。
func BuildAddress(localPart, domain string, now time.Time) string {
	return fmt.Sprintf("%s-%d@%s", localPart, now.Unix(), domain)
}

// ValidDomain 做最基本的域名检查，用于配置加载时的兜底。
func ValidDomain(domain string) bool {
	if domain == "" || !strings.Contains(domain, ".") {
		return false
	}
	if strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	if strings.Contains(domain, "..") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
		for _, r := range label {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-') {
				return false
			}
		}
	}
	return true
}
