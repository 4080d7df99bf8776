package summarize

const chunkPrompt = `You are an expert research summarizer.
Summarize the following excerpt of a research paper in a few sentences.
Keep concrete details: methods, datasets, numbers and conclusions. Return plain text only.`

const reducePrompt = `You are an expert AI research summarizer.
Combine the partial summaries of one research paper below and return ONLY valid JSON in this exact format:

{
  "abstract": "...",
  "objectives": ["...", "..."],
  "methodology": "...",
  "findings": "...",
  "limitations": "...",
  "key_points": ["...", "..."]
}

Ensure all fields exist, even if empty. Do NOT include markdown or explanations.`
