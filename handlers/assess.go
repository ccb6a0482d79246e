package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"matchroom/ai"
	"matchroom/contract"
	"matchroom/domain"
	apperrors "matchroom/errors"
)

// AssessHandler runs the staged compatibility workflow: fetch the
// durable conversation, score its sentiment, and fold the score into
// the pair's relationship report, creating the report with a horoscope
// baseline when it does not exist yet. Every step is narrated back to
// the caller as a stage notification.
type AssessHandler struct {
	log           *slog.Logger
	registry      contract.IRegistry
	conversations contract.ConversationRepository
	reports       contract.ReportRepository
	profiles      contract.ProfileRepository
	analyzer      *ai.Analyzer
}

func NewAssessHandler(
	log *slog.Logger,
	registry contract.IRegistry,
	conversations contract.ConversationRepository,
	reports contract.ReportRepository,
	profiles contract.ProfileRepository,
	analyzer *ai.Analyzer,
) *AssessHandler {
	return &AssessHandler{
		log:           log,
		registry:      registry,
		conversations: conversations,
		reports:       reports,
		profiles:      profiles,
		analyzer:      analyzer,
	}
}

func (h *AssessHandler) Handle(ctx context.Context, sess contract.Session, userID, requestID string, payload json.RawMessage, meta map[string]any) {
	var p AssessPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_payload"))
		return
	}
	if err := validate.Struct(p); err != nil {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "missing_partner_id"))
		return
	}
	partner := asID(p.PartnerID)
	if partner == "" || partner == userID {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_partner_id"))
		return
	}

	h.registry.SafeSend(sess, domain.AckFrame(requestID, "started"))

	topic := strings.ToLower(strings.TrimSpace(p.Topic))
	if topic == "" {
		topic = domain.DefaultTopic
	}

	h.stage(sess, requestID, "fetching_chat_history", nil)

	pair, pairErr := domain.ParsePairKey(userID, partner)
	if pairErr != nil {
		h.log.Warn("assess with non-numeric pair", "user", userID, "partner", partner)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_partner_id"))
		return
	}

	// The fetch outcome is reported but never fatal: a first-contact
	// pair with no history still gets scored and a report created.
	msgs, err := h.conversations.Find(pair, topic)
	switch {
	case err == nil || stderrors.Is(err, apperrors.ErrConversationNotFound):
		h.stage(sess, requestID, "fetched_chat_history", map[string]any{"message_count": len(msgs)})
	default:
		h.log.Error("conversation fetch failed", "pair", pair, "topic", topic, "error", err)
		h.stage(sess, requestID, "fetched_chat_history", map[string]any{
			"message_count": 0,
			"error":         "history_fetch_failed",
		})
		msgs = nil
	}

	h.stage(sess, requestID, "analysing_sentiment", nil)
	scoreText := h.analyzer.SentimentScore(ctx, renderCorpus(msgs), topic)
	h.stage(sess, requestID, "generated_score", map[string]any{"compatibility_score": scoreText})

	score, parseErr := ai.ParseScore(scoreText)
	if parseErr != nil {
		h.log.Warn("unparsable sentiment score, recording zero", "raw", scoreText)
		score = 0
	}

	h.stage(sess, requestID, "updating_report", nil)
	agg, err := h.reports.UpdateAggregate(pair, score)
	if stderrors.Is(err, apperrors.ErrReportNotFound) {
		h.stage(sess, requestID, "fetching_horoscope", nil)
		horoscope := h.horoscopeFor(ctx, pair)

		h.stage(sess, requestID, "creating_report", nil)
		createErr := h.reports.Create(pair, horoscope)
		if createErr != nil && !stderrors.Is(createErr, apperrors.ErrReportExists) {
			h.log.Error("report creation failed", "pair", pair, "error", createErr)
			h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "report_creation_failed"))
			return
		}
		h.stage(sess, requestID, "created_report", nil)
		h.stage(sess, requestID, "creation_complete", nil)

		h.stage(sess, requestID, "updating_report", nil)
		agg, err = h.reports.UpdateAggregate(pair, score)
	}
	if err != nil {
		h.log.Error("report update failed", "pair", pair, "error", err)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "report_update_failed"))
		return
	}
	h.stage(sess, requestID, "updated_report", map[string]any{
		"sentiment_avg": ai.FormatScore(agg.SentimentAvg),
	})
	h.stage(sess, requestID, "update_complete", nil)

	result := reportView(agg)
	result["compatibility_score"] = scoreText
	h.registry.SafeSend(sess, domain.ResultFrame(domain.TypeAssess, requestID, result))
}

func (h *AssessHandler) stage(sess contract.Session, requestID, stage string, extra map[string]any) {
	h.registry.SafeSend(sess, domain.StageFrame(domain.TypeAssess, requestID, stage, extra))
}

// horoscopeFor resolves both profiles and scores their birth
// compatibility. Any failure along the way degrades to nil rather than
// failing the surrounding workflow.
func (h *AssessHandler) horoscopeFor(ctx context.Context, pair domain.PairKey) *float64 {
	return horoscopeScore(ctx, h.log, h.profiles, h.analyzer, pair)
}

func horoscopeScore(ctx context.Context, log *slog.Logger, profiles contract.ProfileRepository, analyzer *ai.Analyzer, pair domain.PairKey) *float64 {
	p1, err := profiles.FindByID(pair.Low)
	if err != nil {
		log.Warn("profile missing for horoscope", "id", pair.Low, "error", err)
		return nil
	}
	p2, err := profiles.FindByID(pair.High)
	if err != nil {
		log.Warn("profile missing for horoscope", "id", pair.High, "error", err)
		return nil
	}
	value, err := ai.ParseScore(analyzer.HoroscopeScore(ctx, p1, p2))
	if err != nil {
		return nil
	}
	return &value
}

// renderCorpus flattens stored messages into the "sender: text" lines
// the sentiment prompt expects.
func renderCorpus(msgs []domain.StoredMessage) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", m.Sender, m.Text)
	}
	return b.String()
}

// reportView renders a report aggregate as the payload shape shared by
// assess and report results. The horoscope score is always present,
// "None" when it was never computed.
func reportView(agg domain.ReportAggregate) map[string]any {
	view := map[string]any{
		"horoscope_score": ai.FormatScore(agg.HoroscopeScore),
		"sentiment_avg":   ai.FormatScore(agg.SentimentAvg),
		"sentiment_count": agg.SentimentCount,
	}
	if agg.LastSentiment != nil {
		view["last_sentiment"] = agg.LastSentiment.UTC().Format(time.RFC3339Nano)
	} else {
		view["last_sentiment"] = nil
	}
	return view
}
