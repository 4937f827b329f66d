package pick

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/watchzerg/magnet-picker-sub000/internal/common"
	"github.com/watchzerg/magnet-picker-sub000/internal/entity"
)

const GB = int64(1) << 30

type MockCandidateStorage struct {
	mock.Mock
}

func (m *MockCandidateStorage) Scan(ctx context.Context) ([]*entity.Candidate, error) {
	args := m.Called()

	var candidates []*entity.Candidate
	if args[0] != nil {
		candidates = args.Get(0).([]*entity.Candidate)
	}

	return candidates, args.Error(1)
}

type MockPickRepository struct {
	mock.Mock
}

func (m *MockPickRepository) ListRules(ctx context.Context) ([]*entity.Rule, error) {
	args := m.Called()

	var rules []*entity.Rule
	if args[0] != nil {
		rules = args.Get(0).([]*entity.Rule)
	}

	return rules, args.Error(1)
}

func (m *MockPickRepository) GetSettings(ctx context.Context) (entity.SelectionSettings, error) {
	args := m.Called()

	return args.Get(0).(entity.SelectionSettings), args.Error(1)
}

func (m *MockPickRepository) SaveSettings(ctx context.Context, settings entity.SelectionSettings) error {
	return m.Called(settings).Error(0)
}

func (m *MockPickRepository) SaveCandidates(ctx context.Context, candidates []*entity.Candidate) error {
	return m.Called(candidates).Error(0)
}

func (m *MockPickRepository) Candidates(ctx context.Context) ([]*entity.Candidate, error) {
	args := m.Called()

	var candidates []*entity.Candidate
	if args[0] != nil {
		candidates = args.Get(0).([]*entity.Candidate)
	}

	return candidates, args.Error(1)
}

func (m *MockPickRepository) GetSelection(ctx context.Context) (*entity.Selection, error) {
	args := m.Called()

	var sel *entity.Selection
	if args[0] != nil {
		sel = args.Get(0).(*entity.Selection)
	}

	return sel, args.Error(1)
}

func (m *MockPickRepository) SaveSelection(ctx context.Context, sel *entity.Selection) error {
	return m.Called(sel).Error(0)
}

type MockReportRenderer struct {
	mock.Mock
}

func (m *MockReportRenderer) HTML(w io.Writer, report *entity.Report) error {
	args := m.Called(report)
	if args.Error(0) == nil {
		_, _ = io.WriteString(w, report.Title)
	}

	return args.Error(0)
}

var defaults = entity.SelectionSettings{RequiredThreshold: 10 * GB, PreferredThreshold: 5 * GB, TargetCount: 2}

func newService(store CandidateStorage, repo PickRepository, renderer ReportRenderer) *pickService {
	return NewPickService(store, repo, renderer, defaults, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})))
}

func candidates() []*entity.Candidate {
	return []*entity.Candidate{
		{ID: "small", Name: "small.mkv", Size: 1 * GB},
		{ID: "big", Name: "big.mp4", Size: 20 * GB},
		{ID: "mid", Name: "mid.mkv", Size: 8 * GB},
	}
}

func mkvBoost() *entity.Rule {
	return &entity.Rule{
		ID:      "mkv",
		Type:    entity.RuleTypeExtension,
		Enabled: true,
		Config:  &entity.ExtensionConfig{Common: entity.Common{ScoreMultiplier: 2}, Extensions: []string{"mkv"}},
	}
}

func TestScan(t *testing.T) {
	t.Run("Scenario 1: candidates are saved", func(t *testing.T) {
		cs := candidates()

		store := new(MockCandidateStorage)
		store.On("Scan").Return(cs, nil)

		repo := new(MockPickRepository)
		repo.On("SaveCandidates", cs).Return(nil)

		n, err := newService(store, repo, nil).Scan(context.Background())
		require.NoError(t, err)
		require.Equal(t, 3, n)
		repo.AssertExpectations(t)
	})

	t.Run("Scenario 2: nothing found", func(t *testing.T) {
		store := new(MockCandidateStorage)
		store.On("Scan").Return(nil, nil)

		repo := new(MockPickRepository)

		_, err := newService(store, repo, nil).Scan(context.Background())
		require.ErrorIs(t, err, common.ErrNoCandidatesFoundError)
		repo.AssertNotCalled(t, "SaveCandidates", mock.Anything)
	})

	t.Run("Scenario 3: scan already running", func(t *testing.T) {
		store := new(MockCandidateStorage)
		store.On("Scan").Return(nil, common.ErrScanHasAlreadyStarted)

		_, err := newService(store, new(MockPickRepository), nil).Scan(context.Background())
		require.ErrorIs(t, err, common.ErrScanHasAlreadyStarted)
	})
}

func TestSettings(t *testing.T) {
	repo := new(MockPickRepository)
	repo.On("GetSettings").Return(entity.SelectionSettings{}, common.ErrSettingsNotFoundError).Once()

	s := newService(nil, repo, nil)

	got, err := s.Settings(context.Background())
	require.NoError(t, err)
	require.Equal(t, defaults, got)

	stored := entity.SelectionSettings{RequiredThreshold: 1, PreferredThreshold: 2, TargetCount: 9}
	repo.On("GetSettings").Return(stored, nil).Once()

	got, err = s.Settings(context.Background())
	require.NoError(t, err)
	require.Equal(t, stored, got)
}

func TestSaveSettings(t *testing.T) {
	repo := new(MockPickRepository)
	repo.On("SaveSettings", mock.Anything).Return(nil)

	s := newService(nil, repo, nil)

	err := s.SaveSettings(context.Background(), entity.SelectionSettings{TargetCount: -1})
	require.ErrorIs(t, err, common.ErrInvalidSettingsError)
	repo.AssertNotCalled(t, "SaveSettings", mock.Anything)

	// Inverted thresholds are accepted.
	inverted := entity.SelectionSettings{RequiredThreshold: 1 * GB, PreferredThreshold: 5 * GB, TargetCount: 1}
	require.NoError(t, s.SaveSettings(context.Background(), inverted))
	repo.AssertCalled(t, "SaveSettings", inverted)
}

func TestScores(t *testing.T) {
	repo := new(MockPickRepository)
	repo.On("Candidates").Return(candidates(), nil)
	repo.On("ListRules").Return([]*entity.Rule{mkvBoost()}, nil)

	views, err := newService(nil, repo, nil).Scores(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)

	assert.Equal(t, "big", views[0].Candidate.ID)
	assert.Equal(t, "mid", views[1].Candidate.ID)
	assert.InDelta(t, float64(16*GB), views[1].FinalScore, 1)
	require.Len(t, views[1].Steps, 1)
	assert.True(t, views[1].Steps[0].Matched)
	assert.Equal(t, "mkv", views[1].Steps[0].Literal)
}

func TestPick(t *testing.T) {
	t.Run("Scenario 1: tiers are counted", func(t *testing.T) {
		repo := new(MockPickRepository)
		repo.On("Candidates").Return(candidates(), nil)
		repo.On("ListRules").Return([]*entity.Rule{mkvBoost()}, nil)
		repo.On("GetSettings").Return(entity.SelectionSettings{}, common.ErrSettingsNotFoundError)
		repo.On("SaveSelection", mock.Anything).Return(nil)

		sel, picked, err := newService(nil, repo, nil).Pick(context.Background())
		require.NoError(t, err)

		// big (20G) and mid (8G*2) are both above the required threshold.
		require.Equal(t, []string{"big", "mid"}, sel.CandidateIDs)
		require.Len(t, picked, 2)
		assert.Equal(t, 2, sel.Required)
		assert.Equal(t, 0, sel.Preferred)
		assert.Equal(t, 0, sel.Fallback)
		assert.Equal(t, 3, sel.Pool)
		assert.False(t, sel.CreatedAt.IsZero())

		repo.AssertCalled(t, "SaveSelection", sel)
	})

	t.Run("Scenario 2: no candidates", func(t *testing.T) {
		repo := new(MockPickRepository)
		repo.On("Candidates").Return(nil, common.ErrNoCandidatesFoundError)

		_, _, err := newService(nil, repo, nil).Pick(context.Background())
		require.ErrorIs(t, err, common.ErrNoCandidatesFoundError)
		repo.AssertNotCalled(t, "SaveSelection", mock.Anything)
	})

	t.Run("Scenario 3: save fails", func(t *testing.T) {
		repo := new(MockPickRepository)
		repo.On("Candidates").Return(candidates(), nil)
		repo.On("ListRules").Return(nil, nil)
		repo.On("GetSettings").Return(defaults, nil)
		repo.On("SaveSelection", mock.Anything).Return(errors.New("boom"))

		_, _, err := newService(nil, repo, nil).Pick(context.Background())
		require.Error(t, err)
	})
}

func TestReport(t *testing.T) {
	sel := &entity.Selection{
		CandidateIDs: []string{"big", "gone", "mid"},
		Required:     1,
		Preferred:    1,
		Pool:         3,
		CreatedAt:    time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	repo := new(MockPickRepository)
	repo.On("GetSelection").Return(sel, nil)
	repo.On("Candidates").Return(candidates(), nil)
	repo.On("ListRules").Return([]*entity.Rule{mkvBoost()}, nil)
	repo.On("GetSettings").Return(defaults, nil)

	renderer := new(MockReportRenderer)
	renderer.On("HTML", mock.Anything).Return(nil)

	var buf bytes.Buffer
	require.NoError(t, newService(nil, repo, renderer).Report(context.Background(), &buf))
	require.Equal(t, reportTitle, buf.String())

	report := renderer.Calls[0].Arguments.Get(0).(*entity.Report)
	require.Len(t, report.Rows, 2)
	assert.Equal(t, TierRequired, report.Rows[0].Tier)
	assert.Equal(t, "20 GiB", report.Rows[0].Size)
	assert.Equal(t, "mid.mkv", report.Rows[1].Name)
	assert.Equal(t, TierFallback, report.Rows[1].Tier)
	assert.Equal(t, "16 GiB", report.Rows[1].Score)
	assert.Equal(t, "10 GiB", report.Required)
	require.Len(t, report.Rules, 1)
	assert.Equal(t, "+100%", report.Rules[0].Delta)
}

func TestReportWithoutSelection(t *testing.T) {
	repo := new(MockPickRepository)
	repo.On("GetSelection").Return(nil, common.ErrSelectionNotFoundError)

	err := newService(nil, repo, new(MockReportRenderer)).Report(context.Background(), io.Discard)
	require.ErrorIs(t, err, common.ErrSelectionNotFoundError)
}
