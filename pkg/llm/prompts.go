package llm

// prompts ask for Chinese output because the downstream daily report is
// published in Chinese. All JSON-returning prompts instruct the model
// to answer with a bare JSON object; the parser still tolerates prose
// and code fences around it.

const selectPrompt = `你是一个 AI 技术热点筛选助手。请从以下文章列表中，筛选出与 AI/人工智能最相关、最有价值的内容。

评判标准：
1. 与 AI、机器学习、深度学习、大语言模型等直接相关
2. 内容有价值（技术突破、重要发布、行业动态等）
3. 优先选择热度高、影响力大的内容

请从下面的文章中选出最多 %d 篇最符合条件的文章。

文章列表：
%s

请以 JSON 格式返回结果，**所有文本内容必须翻译成中文**，格式如下：
{
  "selected": [
    {
      "index": 0,
      "title_cn": "中文标题",
      "reason_cn": "中文推荐理由（作为该资讯的简短总结，50字以内）",
      "tags": ["tech"],
      "keywords": ["关键词1", "关键词2"]
    }
  ]
}

只返回 JSON，不要其他内容。index 是文章在列表中的索引（从 0 开始）。
tags 只能使用 trending、tech、business 三个值。
keywords 为 2-5 个描述该资讯的关键词。`

const summaryPrompt = `请根据以下今日 AI 热点新闻的标题和推荐理由，写一段约 50 字的简短日报综述。
综述应点出今天最值得关注的 1-3 个核心热点事件。

热点列表：
%s

请直接返回综述文本，不要加任何前缀或格式。`

const analysisPrompt = `请基于以下今日 AI 热点新闻，输出一份结构化深度分析。

热点列表：
%s
%s
请以 JSON 格式返回结果：
{
  "trends": ["今日值得关注的技术或行业趋势，2-4 条"],
  "highlights": [
    {"title": "最重要的资讯标题", "reason": "为什么重要（50字以内）"}
  ],
  "outlook": "对后续发展的简短展望（80字以内）"
}

只返回 JSON，不要其他内容。`

const repoTranslatePrompt = `请为以下 GitHub AI 项目生成中文介绍。

项目列表：
%s

请以 JSON 格式返回结果：
{
  "translated": [
    {
      "index": 0,
      "description_cn": "项目中文介绍（一句话，50字以内）",
      "ai_reason": "推荐理由（为什么值得关注，30字以内）"
    }
  ]
}

只返回 JSON，不要其他内容。`

const modelTranslatePrompt = `请为以下 HuggingFace 热门模型生成中文介绍。

模型列表：
%s

请以 JSON 格式返回结果：
{
  "translated": [
    {
      "index": 0,
      "description_cn": "模型中文介绍（一句话，50字以内）",
      "ai_reason": "推荐理由（为什么值得关注，30字以内）"
    }
  ]
}

只返回 JSON，不要其他内容。`

// truncate cuts a string to at most n runes, multibyte safe
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
