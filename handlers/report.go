package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"

	"matchroom/ai"
	"matchroom/contract"
	"matchroom/domain"
	apperrors "matchroom/errors"
)

// ReportHandler serves the view-or-create report workflow. A report
// that already carries sentiment data is returned as-is; otherwise one
// is created with a horoscope baseline so a later assessment has a row
// to fold scores into.
type ReportHandler struct {
	log      *slog.Logger
	registry contract.IRegistry
	reports  contract.ReportRepository
	profiles contract.ProfileRepository
	analyzer *ai.Analyzer
}

func NewReportHandler(
	log *slog.Logger,
	registry contract.IRegistry,
	reports contract.ReportRepository,
	profiles contract.ProfileRepository,
	analyzer *ai.Analyzer,
) *ReportHandler {
	return &ReportHandler{
		log:      log,
		registry: registry,
		reports:  reports,
		profiles: profiles,
		analyzer: analyzer,
	}
}

func (h *ReportHandler) Handle(ctx context.Context, sess contract.Session, userID, requestID string, payload json.RawMessage, meta map[string]any) {
	var p ReportPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_payload"))
		return
	}
	partner := firstID(p.PartnerID, p.Partner, p.To)
	if partner == "" {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "missing_partner_id"))
		return
	}
	if partner == userID {
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_partner_id"))
		return
	}

	h.registry.SafeSend(sess, domain.AckFrame(requestID, "started"))

	pair, err := domain.ParsePairKey(userID, partner)
	if err != nil {
		h.log.Warn("report with non-numeric pair", "user", userID, "partner", partner)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "invalid_partner_id"))
		return
	}

	h.stage(sess, requestID, "checking_report", nil)
	agg, findErr := h.reports.Find(pair)
	switch {
	case findErr == nil && agg.SentimentCount > 0:
		h.stage(sess, requestID, "report_found", nil)
		h.registry.SafeSend(sess, domain.ResultFrame(domain.TypeReport, requestID, reportView(agg)))
		return
	case findErr != nil && !stderrors.Is(findErr, apperrors.ErrReportNotFound):
		h.log.Error("report lookup failed", "pair", pair, "error", findErr)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "report_lookup_failed"))
		return
	}

	horoscope := agg.HoroscopeScore
	if stderrors.Is(findErr, apperrors.ErrReportNotFound) {
		h.stage(sess, requestID, "computing_horoscope", nil)
		horoscope = horoscopeScore(ctx, h.log, h.profiles, h.analyzer, pair)
		h.stage(sess, requestID, "computed_horoscope", map[string]any{
			"horoscope_score": ai.FormatScore(horoscope),
		})
	}

	h.stage(sess, requestID, "creating_report", nil)
	switch createErr := h.reports.Create(pair, horoscope); {
	case createErr == nil:
		h.stage(sess, requestID, "created_report", nil)
	case stderrors.Is(createErr, apperrors.ErrReportExists):
		h.stage(sess, requestID, "already_exists", nil)
	default:
		h.log.Error("report creation failed", "pair", pair, "error", createErr)
		h.stage(sess, requestID, "report_creation_failed", nil)
	}
	h.stage(sess, requestID, "creation_complete", nil)

	final, err := h.reports.Find(pair)
	if err != nil {
		h.log.Error("report re-read failed", "pair", pair, "error", err)
		h.registry.SafeSend(sess, domain.ErrorFrame(requestID, "report_lookup_failed"))
		return
	}
	h.registry.SafeSend(sess, domain.ResultFrame(domain.TypeReport, requestID, reportView(final)))
}

func (h *ReportHandler) stage(sess contract.Session, requestID, stage string, extra map[string]any) {
	h.registry.SafeSend(sess, domain.StageFrame(domain.TypeReport, requestID, stage, extra))
}
