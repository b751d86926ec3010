package analysis

// LLM prompt templates. Data only, no logic.

// analysisPrompt asks for the structured engagement analysis.
// Args: comments block.
const analysisPrompt = `Analyze these YouTube comments and their replies:

%s
Provide a structured analysis in this exact JSON format:
{
  "sentiment_distribution": {"positive": number, "neutral": number, "negative": number},
  "comment_categories": {"questions": number, "praise": number, "suggestions": number, "complaints": number, "general": number},
  "engagement_metrics": {"high_engagement": number, "medium_engagement": number, "low_engagement": number},
  "key_topics": [
    {"topic": "topic1", "count": number},
    {"topic": "topic2", "count": number},
    {"topic": "topic3", "count": number}
  ],
  "overall_analysis": {"sentiment": "text", "engagement_level": "text", "community_health": "text"},
  "recommendations": ["recommendation1", "recommendation2", "recommendation3"],
  "positiveInsights": ["Positive Insight 1", "Positive Insight 2", "Positive Insight 3"],
  "futureImprovementsSuggests": ["suggestion 1", "suggestion 2", "suggestion 3"]
}

Rules:
1. All numbers must be actual counts, not percentages
2. Each comment belongs to exactly one category
3. Engagement levels: high >100 likes, medium 10-100 likes, low <10 likes
4. Key topics should be specific themes mentioned frequently
5. Provide actionable recommendations
6. Include both top-level comments and replies in the analysis

Return ONLY the JSON object, no additional text.`

// chatPrompt answers a free-form question about a stored comment set.
// Args: question, comments block.
const chatPrompt = `Based on these YouTube comments and replies, please answer the following question:

Question: %s

Comments and Replies:
%s
Provide a detailed analysis in this exact JSON format:
{
  "answer": "detailed answer to the question",
  "relevant_comments": ["comment1", "comment2"],
  "confidence": "high/medium/low",
  "additional_insights": "any additional relevant insights"
}

Rules:
1. Base your answer solely on the provided comments and replies
2. Include 2-3 most relevant comments or replies that support your answer
3. Keep the response focused and specific
4. Return ONLY the JSON object, no additional text`

// summaryPrompt summarizes a transcript excerpt.
// Args: range description, transcript.
const summaryPrompt = `You are summarizing a YouTube video from its transcript.

Range: %s

Transcript:
%s

Return a JSON object with this exact structure:
{
  "summary": "<4-6 sentence plain-text summary of what is said in this range>",
  "key_points": ["<specific point>", "<specific point>", "<specific point>"],
  "topics": ["<topic>", "<topic>"],
  "sentiment": "<positive | neutral | negative | mixed>",
  "target_audience": "<who this content is for>"
}

Rules:
- Use ONLY what is said in the transcript, do not invent facts
- key_points: 3-7 concrete statements with names, numbers or steps when present
- Answer in the same language as the transcript

Return ONLY the JSON object, no markdown, no explanation.`

// comparePrompt contrasts two stored analyses.
// Args: video 1 block, video 2 block.
const comparePrompt = `Compare the following two YouTube video analyses:

Video 1:
%s
Video 2:
%s
Provide a detailed comparison in this JSON format:
{
  "sentiment_comparison": "text describing sentiment differences",
  "engagement_comparison": "text describing engagement differences",
  "key_topics": {
    "common": ["topic1", "topic2"],
    "unique_to_video1": ["topic3"],
    "unique_to_video2": ["topic4"]
  },
  "comment_categories_comparison": "text describing category differences",
  "community_health_comparison": "text describing community health",
  "other_insights": "text for additional insights"
}

Rules:
1. Base the comparison on the provided data only.
2. Highlight key differences and similarities.
3. Provide actionable insights where possible.
4. Return ONLY the JSON object.`
