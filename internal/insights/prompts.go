package insights

const insightsPrompt = `You are an expert AI research analyst.
Analyze the following research summary and extract deeper insights.

Return ONLY valid JSON in this exact format (nothing else):

{
  "findings": ["..."],
  "methods": ["..."],
  "datasets": ["..."],
  "limitations": ["..."],
  "citations": ["..."],
  "implications": ["..."]
}`

const sectionsPrompt = `You are an expert research analyst.
Summarize the following sections from the paper text below. If a section is missing, skip it.

Sections to summarize: Abstract, Introduction, Methods, Results, Discussion, Conclusion.

Return ONLY valid JSON in this format:
[
  {"section": "Abstract", "content": "..."},
  {"section": "Methods", "content": "..."}
]`

const rewritePrompt = `Rewrite this paragraph to be clear, concise, and self-contained for retrieval. Return only the rewritten paragraph.`

const conceptsPrompt = `Extract 10 core concepts from this research summary.
For each concept, provide a short one-sentence description.

Return ONLY valid JSON in this format:
[
  {"concept": "Transformer Architecture", "description": "A neural network architecture relying on self-attention mechanisms."}
]`
