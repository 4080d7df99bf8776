package rag

const compressPrompt = `Summarize and distill these research fragments into a compact representation while preserving key details, methods, and findings.
Keep the source attributions clear.`

const answerPrompt = `You are a grounded research assistant.
Use ONLY the research context below to answer the user's question.
Cite relevant sources using paper titles and do not invent missing information.

Return ONLY valid JSON in this format:
{
  "answer": "...",
  "sources": [
    {"title": "...", "doc_id": "...", "chunk_type": "..."}
  ]
}`

const generalPrompt = `You are a helpful research assistant.
No stored research matched the user's question. Answer from general knowledge.

Return ONLY valid JSON in this format:
{
  "answer": "...",
  "sources": []
}`
