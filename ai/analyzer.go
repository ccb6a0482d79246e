package ai

import (
	"context"
	"fmt"
	"log/slog"

	"matchroom/contract"
	"matchroom/domain"
)

// Analyzer turns raw conversations and profile attributes into
// percentage scores through the LLM. Both methods return "XX.XX %"
// or InvalidResult; they never fail the calling workflow.
type Analyzer struct {
	log *slog.Logger
	llm contract.Scorer
}

func NewAnalyzer(log *slog.Logger, llm contract.Scorer) *Analyzer {
	return &Analyzer{log: log, llm: llm}
}

const sentimentPrompt = `You are a relationship analysis expert using the Gottman Method to evaluate a couple's conversation.
Assess the following chat conversation between two people and determine a single
compatibility score in percentage format (XX.X%%), based on these markers:

Relationship Assessment Markers (Gottman Method)
- Positive Interactions: Compliments, appreciation, humor, empathy, agreement
- Negative Interactions: Criticism, sarcasm, dismissive tone, contempt
- Defensiveness: Denying responsibility, counter-attacking
- Stonewalling: Silence, avoiding answers, disengaging
- Trust Indicators: Expressions of reliability or safety
- Shared Meaning: Alignment on goals/future
- Conflict Resolution: Calmly expressing feelings, using "I" statements, compromise
- Emotional Intimacy: Vulnerability, sharing fears or dreams
- Humor & Playfulness: Light teasing, shared jokes, laughter

Important Instructions:
- Evaluate the tone, patterns, and content of the conversation.
- ONLY RETURN the number in the format XX.XX%% (example: 57.32%%). Do NOT include any text, explanation, tables, or markdown.

Conversation topic: %s
Conversation: %s`

const horoscopePrompt = `Based on the following birth details, calculate compatibility as a single numeric percentage. ONLY RETURN the number in the format XX.XX%% (example: 57.32%%). Do NOT include any text, explanation, tables, or markdown.
Person 1: DOB %s, Place %s
Person 2: DOB %s, Place %s`

// SentimentScore scores a conversation corpus for a topic.
func (a *Analyzer) SentimentScore(ctx context.Context, corpus, topic string) string {
	raw, err := a.llm.Score(ctx, fmt.Sprintf(sentimentPrompt, topic, corpus))
	if err != nil {
		a.log.Error("sentiment scoring failed", "error", err)
		return InvalidResult
	}
	return normalize(raw)
}

// HoroscopeScore scores the birth/location compatibility of two
// profiles.
func (a *Analyzer) HoroscopeScore(ctx context.Context, p1, p2 domain.Profile) string {
	raw, err := a.llm.Score(ctx, fmt.Sprintf(horoscopePrompt,
		p1.Dob, p1.PlaceOfBirth, p2.Dob, p2.PlaceOfBirth))
	if err != nil {
		a.log.Error("horoscope scoring failed", "error", err)
		return InvalidResult
	}
	return normalize(raw)
}

// normalize re-renders whatever the model said as a canonical
// percentage string, or InvalidResult.
func normalize(raw string) string {
	value, err := ParseScore(raw)
	if err != nil {
		return InvalidResult
	}
	return FormatPercent(value)
}
