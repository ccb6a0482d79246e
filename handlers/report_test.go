package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"matchroom/ai"
	"matchroom/domain"
	apperrors "matchroom/errors"
	"matchroom/mocks"
)

type reportFixture struct {
	reports  *mocks.MockReportRepository
	profiles *mocks.MockProfileRepository
	scorer   *mocks.MockScorer
	handler  *ReportHandler
	sess     *fakeSession
}

func newReportFixture(t *testing.T) *reportFixture {
	ctrl := gomock.NewController(t)
	registry := testRegistry()
	sess := &fakeSession{}
	registry.Register("3", sess)

	f := &reportFixture{
		reports:  mocks.NewMockReportRepository(ctrl),
		profiles: mocks.NewMockProfileRepository(ctrl),
		scorer:   mocks.NewMockScorer(ctrl),
		sess:     sess,
	}
	f.handler = NewReportHandler(testLogger(), registry, f.reports, f.profiles,
		ai.NewAnalyzer(testLogger(), f.scorer))
	return f
}

func Test_ReportHandler_ExistingReport_ReturnedWithoutWrites(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)
	pair := domain.NewPairKey(3, 5)

	// Given a report that already carries sentiment data
	last := time.Now()
	f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{
		HoroscopeScore: lo.ToPtr(55.0),
		SentimentSum:   140,
		SentimentCount: 2,
		SentimentAvg:   lo.ToPtr(70.0),
		LastSentiment:  &last,
	}, nil)

	// When the report is requested
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"partner_id":"5"}`), nil)

	// Then it is returned as-is without any writes
	r.Equal([]string{"checking_report", "report_found"},
		stagesOf(f.sess.sent(), domain.TypeReport))
	result, ok := resultOf(f.sess.sent(), domain.TypeReport)
	r.True(ok)
	r.Equal("55.00", result["horoscope_score"])
	r.Equal("70.00", result["sentiment_avg"])
	r.Equal(2, result["sentiment_count"])
}

func Test_ReportHandler_CreatesWithHoroscopeBaseline(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)
	pair := domain.NewPairKey(3, 5)

	// Given no report yet and resolvable profiles
	f.profiles.EXPECT().FindByID(int64(3)).Return(domain.Profile{ID: 3, Dob: "1990-01-01", PlaceOfBirth: "Paris"}, nil)
	f.profiles.EXPECT().FindByID(int64(5)).Return(domain.Profile{ID: 5, Dob: "1992-02-02", PlaceOfBirth: "Lyon"}, nil)
	f.scorer.EXPECT().Score(gomock.Any(), gomock.Any()).Return("61.25%", nil)

	var createdHoroscope *float64
	gomock.InOrder(
		f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{}, apperrors.ErrReportNotFound),
		f.reports.EXPECT().Create(pair, gomock.Any()).DoAndReturn(func(_ domain.PairKey, horoscope *float64) error {
			createdHoroscope = horoscope
			return nil
		}),
		f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{
			HoroscopeScore: lo.ToPtr(61.25),
		}, nil),
	)

	// When the report is requested
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"partner_id":"5"}`), nil)

	// Then a report was created with the horoscope baseline
	r.NotNil(createdHoroscope)
	r.InDelta(61.25, *createdHoroscope, 0.001)
	r.Equal([]string{
		"checking_report",
		"computing_horoscope",
		"computed_horoscope",
		"creating_report",
		"created_report",
		"creation_complete",
	}, stagesOf(f.sess.sent(), domain.TypeReport))

	// Then the terminal view shows the horoscope and an empty aggregate
	result, ok := resultOf(f.sess.sent(), domain.TypeReport)
	r.True(ok)
	r.Equal("61.25", result["horoscope_score"])
	r.Equal("None", result["sentiment_avg"])
	r.Equal(0, result["sentiment_count"])
}

func Test_ReportHandler_ExistingBaseline_NotRecomputed(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)
	pair := domain.NewPairKey(3, 5)

	// Given a report row that has a horoscope but no sentiment yet;
	// the concurrent create loses to the existing row
	existing := domain.ReportAggregate{HoroscopeScore: lo.ToPtr(48.5)}
	gomock.InOrder(
		f.reports.EXPECT().Find(pair).Return(existing, nil),
		f.reports.EXPECT().Create(pair, existing.HoroscopeScore).Return(apperrors.ErrReportExists),
		f.reports.EXPECT().Find(pair).Return(existing, nil),
	)

	// When the report is requested
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"partner_id":"5"}`), nil)

	// Then no horoscope was recomputed and the existing row wins
	r.Equal([]string{
		"checking_report",
		"creating_report",
		"already_exists",
		"creation_complete",
	}, stagesOf(f.sess.sent(), domain.TypeReport))
	result, ok := resultOf(f.sess.sent(), domain.TypeReport)
	r.True(ok)
	r.Equal("48.50", result["horoscope_score"])
}

func Test_ReportHandler_MissingProfile_CreatesWithoutHoroscope(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)
	pair := domain.NewPairKey(3, 5)

	// Given one of the two profiles cannot be resolved
	f.profiles.EXPECT().FindByID(int64(3)).Return(domain.Profile{}, apperrors.ErrProfileNotFound)

	var createdHoroscope = lo.ToPtr(99.0)
	gomock.InOrder(
		f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{}, apperrors.ErrReportNotFound),
		f.reports.EXPECT().Create(pair, gomock.Any()).DoAndReturn(func(_ domain.PairKey, horoscope *float64) error {
			createdHoroscope = horoscope
			return nil
		}),
		f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{}, nil),
	)

	// When the report is requested
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"partner_id":"5"}`), nil)

	// Then the report exists with no baseline and the view says None
	r.Nil(createdHoroscope)
	result, ok := resultOf(f.sess.sent(), domain.TypeReport)
	r.True(ok)
	r.Equal("None", result["horoscope_score"])
}

func Test_ReportHandler_PartnerAliases(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)
	pair := domain.NewPairKey(3, 5)

	// Given an existing report; the partner arrives under the "to" alias
	f.reports.EXPECT().Find(pair).Return(domain.ReportAggregate{
		SentimentCount: 1,
		SentimentAvg:   lo.ToPtr(60.0),
	}, nil)

	// When the report is requested with the alias key
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"to":5}`), nil)

	// Then the pair resolved the same way
	_, ok := resultOf(f.sess.sent(), domain.TypeReport)
	r.True(ok)
}

func Test_ReportHandler_SelfReport_Rejected(t *testing.T) {
	r := require.New(t)
	f := newReportFixture(t)

	// When a user asks for a report about themselves
	f.handler.Handle(context.Background(), f.sess, "3", "req-1",
		json.RawMessage(`{"partner_id":"3"}`), nil)

	// Then the frame is rejected outright
	errFrame, ok := frameOfType(f.sess.sent(), domain.TypeError)
	r.True(ok)
	r.Equal("invalid_partner_id", errFrame.Payload["message"])
}
