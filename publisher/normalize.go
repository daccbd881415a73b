package publisher

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	olRe   = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe   = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe   = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe    = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
	imgRe  = regexp.MustCompile(`(?is)<img\b[^>]*?\bsrc\s*=\s*["']([^"']+)["']`)
	hSizes = map[string]string{
		"1": "24px",
		"2": "22px",
		"3": "20px",
		"4": "18px",
		"5": "16px",
		"6": "15px",
	}
)

// WeChat 会弱化部分列表和标题标签，导致有序列表合并、标题样式丢失。
// 这里在上传前把列表展开、把标题转成带字号的段落，让排版更稳定。
func flattenListsForWeChat(html string) string {
	html = olRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			b.WriteString(fmt.Sprintf("<p>%d. %s</p>", i+1, strings.TrimSpace(item[1])))
		}
		return b.String()
	})

	return ulRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			b.WriteString("<p>• ")
			b.WriteString(strings.TrimSpace(item[1]))
			b.WriteString("</p>")
		}
		return b.String()
	})
}

func convertHeadingsForWeChat(html string) string {
	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		size := hSizes[parts[1]]
		if size == "" {
			size = "18px"
		}
		text := strings.TrimSpace(parts[2])
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`, size, text)
	})
}

func normalizeForWeChat(html string) string {
	html = convertHeadingsForWeChat(html)
	html = flattenListsForWeChat(html)
	return html
}

// localImageRefs returns the distinct <img src> values that point at local files,
// in document order. Remote and data: sources are left alone.
func localImageRefs(html string) []string {
	var refs []string
	seen := make(map[string]bool)
	for _, m := range imgRe.FindAllStringSubmatch(html, -1) {
		ref := strings.TrimSpace(m[1])
		if ref == "" || seen[ref] || !isLocalRef(ref) {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}
	return refs
}

func isLocalRef(ref string) bool {
	lower := strings.ToLower(ref)
	for _, prefix := range []string{"http://", "https://", "//", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return false
		}
	}
	return true
}

// rewriteImageRefs swaps every local <img src> found in urls for its remote URL.
func rewriteImageRefs(html string, urls map[string]string) string {
	matches := imgRe.FindAllStringSubmatchIndex(html, -1)
	if len(matches) == 0 {
		return html
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[2], m[3]
		ref := strings.TrimSpace(html[start:end])
		remote, ok := urls[ref]
		if !ok {
			continue
		}
		b.WriteString(html[last:start])
		b.WriteString(remote)
		last = end
	}
	b.WriteString(html[last:])
	return b.String()
}
