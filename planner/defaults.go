package planner

// DefaultKeywords returns a fresh copy of the built-in AI keyword table.
func DefaultKeywords() Keywords {
	return Keywords{
		"companies": {
			"OpenAI", "Anthropic", "Claude", "DeepMind", "Google AI",
			"Meta AI", "Mistral", "Cohere", "Perplexity", "xAI",
		},
		"models": {
			"GPT-4o", "GPT-5", "Claude 4", "Gemini", "Llama 3",
			"Mistral Large", "DALL-E", "Sora", "Midjourney", "Stable Diffusion",
		},
		"dev_tools": {
			"Claude Code", "Claude Cowork", "Cursor", "GitHub Copilot", "Windsurf",
			"v0", "Replit Agent", "Devin", "LangChain", "LlamaIndex",
		},
		"technologies": {
			"AI agent", "LLM", "RAG", "fine-tuning", "multimodal",
			"AGI", "AI safety", "RLHF", "MoE", "context window",
		},
		"influencers": {
			"@sama", "@ylecun", "@kaborevsky", "@emaborevsky",
			"@AnthropicAI", "@OpenAI", "@GoogleDeepMind",
		},
		"breaking_news": {
			"Anthropic launches", "OpenAI announces", "Google AI releases",
			"new AI tool", "AI product launch", "just released", "now available",
		},
	}
}

// DefaultDimensions lists the dimensions searched every day, highest priority first.
func DefaultDimensions() []DimensionConfig {
	return []DimensionConfig{
		{Key: "breaking_news", Name: "AI突发新闻"},
		{Key: "companies", Name: "AI公司动态", MaxTerms: 5},
		{Key: "models", Name: "AI模型产品", MaxTerms: 5},
		// 包含 Claude Code 和 Cowork
		{Key: "dev_tools", Name: "AI开发工具", MaxTerms: 6},
		{Key: "technologies", Name: "AI技术趋势", MaxTerms: 5},
	}
}
