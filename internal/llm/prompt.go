package llm

// extractionPrompt instructs the vision model to transcribe one page.
const extractionPrompt = `Extract all meaningful content from the image and output it strictly as Markdown:

1. Text: reproduce all readable text as it appears. Do not add symbols, headings or summaries of your own.
2. Formulas: write mathematical formulas in LaTeX and wrap each one in double dollar signs ($$) for display mode.
3. Tables: convert tables into LaTeX tabular environments, without captions, labels or extra description.

Output rules:
- No explanations, headers, code fences or comments of your own.
- Output only the extracted content in Markdown-compatible syntax.
- Preserve the reading order and layout of the page.
- Separate distinct sections of the page clearly.`
