package generator

import (
	"fmt"
	"strings"
)

// Section markers the model must wrap each report in.
const (
	MarkdownStart = "[MARKDOWN]"
	MarkdownEnd   = "[/MARKDOWN]"
	HTMLStart     = "[WECHAT_HTML]"
	HTMLEnd       = "[/WECHAT_HTML]"
)

// Prompt 表示发送给 LLM 的消息集合。
type Prompt struct {
	System string
	User   string
}

// DefaultStyle 是默认的写作风格与版式要求。
const DefaultStyle = `你是一位在硅谷工作多年的华人技术老兵，运营技术公众号「Tech老兵日记」。
风格：说话直接、观点犀利，善用类比，敢于表态，语气像跟朋友聊天。

文章要求：
- 总长度 1500-2500 字，标题包含热门关键词（AI、Claude、GPT、程序员 等）。
- 结构：开篇引言；今日头条：XXX（300-400字深度分析）；硅谷雷达（2-3个趋势，🔥/⚠️/💀 标注）；
  HN 热榜精选（8-10条，表格：排名|标题|热度|为什么值得看）；Product Hunt 今日发现（5-6个，表格：产品|一句话介绍|亮点|踩坑提醒）；
  AI 圈内幕（400-500字）；本周实操建议（2-3条可落地）；老兵碎碎念；互动时间；下期预告。

HTML 版本要求（适配微信公众号）：
- 全部使用内联样式；卡片 padding: 15px; margin-bottom: 15px; border-radius: 12px;
- 标题与内容之间 margin-bottom: 10px; 表格 width: 100%; 表头背景 #667eea 白字，单元格 padding: 8px 10px;
- 正文 14-15px，标题 16-18px，表格 13px，line-height: 1.8;
- 禁止 min-height/固定 height，禁止空 div 或 br 占位。
- 今日头条区块使用 linear-gradient(135deg, #667eea 0%, #764ba2 100%) 白字；
  个人观点使用左边框 4px solid #667eea 浅灰背景；互动引导使用橙红渐变居中加粗。`

// BuildDigestPrompt 生成日报提示词：数据源检索指令 + 风格要求 + 输出格式。
func BuildDigestPrompt(req Request) Prompt {
	year := req.Date.Year()
	day := req.Date.Format("2006-01-02")

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("今天是 %s。请先使用联网搜索收集以下数据源的最新内容，再撰写技术日报。\n\n", day))
	sb.WriteString("## 数据源\n\n")
	sb.WriteString("### Hacker News\n")
	sb.WriteString("- Hacker News top stories today site:news.ycombinator.com OR site:hntoplinks.com\n\n")
	sb.WriteString("### Product Hunt\n")
	sb.WriteString(fmt.Sprintf("- Product Hunt top products %s site:producthunt.com\n\n", day))
	sb.WriteString("### AI Twitter（按优先级排列）\n")
	for i, d := range req.Dimensions {
		sb.WriteString(fmt.Sprintf("%d. %s：%s\n", i+1, d.Name, d.Query(year)))
	}
	sb.WriteString("\n## 写作要求\n\n")
	style := strings.TrimSpace(req.Style)
	if style == "" {
		style = DefaultStyle
	}
	sb.WriteString(style)
	sb.WriteString("\n\n## 输出格式\n\n")
	sb.WriteString("严格按以下格式返回，两个部分都必须有内容，标签之外的文字会被丢弃：\n\n")
	sb.WriteString(MarkdownStart + "\n（Markdown 内容）\n" + MarkdownEnd + "\n\n")
	sb.WriteString(HTMLStart + "\n（HTML 内容，以 <div> 开始，不要包含 <!DOCTYPE>、<html>、<head>、<body> 等标签）\n" + HTMLEnd + "\n")

	return Prompt{
		System: "你是技术日报作者。必须先检索再写作，并严守输出格式。",
		User:   sb.String(),
	}
}
