package orchestrator_test

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/ecget/internal/logger"
	"github.com/glorpus-work/ecget/pkg/auth"
	"github.com/glorpus-work/ecget/pkg/download"
	pkgerrors "github.com/glorpus-work/ecget/pkg/errors"
	"github.com/glorpus-work/ecget/pkg/model"
	"github.com/glorpus-work/ecget/pkg/orchestrator"
	mocks "github.com/glorpus-work/ecget/pkg/orchestrator/mocks"
)

func TestMain(m *testing.M) {
	logger.SetTestOutput(&bytes.Buffer{})
	logger.InitLogger("error")
	code := m.Run()
	logger.UnsetTestOutput()
	os.Exit(code)
}

func writeObservations(t *testing.T, rows ...string) string {
	t.Helper()
	content := "yyyy-mm-dd,hh:mm:ss\n"
	for _, row := range rows {
		content += row + "\n"
	}
	path := filepath.Join(t.TempDir(), "observations.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func descriptor(t *testing.T, name, baseline string) model.FileDescriptor {
	t.Helper()
	remote, err := url.Parse("https://archive.example/files/" + name)
	require.NoError(t, err)
	return model.FileDescriptor{
		Name:        name,
		RemoteURL:   remote,
		SizeBytes:   100,
		ProductCode: "ATL_NOM_1B",
		Baseline:    baseline,
	}
}

func baseRequest(t *testing.T, csvPath string) orchestrator.RunRequest {
	t.Helper()
	return orchestrator.RunRequest{
		CSVPath: csvPath,
		Selection: model.ProductSelection{
			Collection: "EarthCAREL1InstChecked",
			Products:   []string{"ATL_NOM_1B"},
			Baseline:   model.BaselineAuto,
		},
		Dir:         t.TempDir(),
		Tolerance:   time.Second,
		Credentials: auth.NewCredentials("user", "secret"),
	}
}

func TestRun_DownloadsEveryHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123", "2024-06-15,14:15:20.456")

	searcher := mocks.NewMockSearcher(ctrl)
	fetcher := mocks.NewMockFetcher(ctrl)

	hits := []model.FileDescriptor{
		descriptor(t, "ECA_EXBA_ATL_NOM_1B_A.ZIP", "BA"),
		descriptor(t, "ECA_EXBA_ATL_NOM_1B_B.ZIP", "BA"),
	}
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(hits, nil).Times(2)

	var fetched []model.FileDescriptor
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			fetched = append(fetched, desc)
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess, BytesWritten: 100}
		}).Times(4)

	var phases []string
	o := &orchestrator.Orchestrator{
		Catalog: searcher,
		Engine:  fetcher,
		Hooks:   orchestrator.Hooks{OnEvent: func(e orchestrator.Event) { phases = append(phases, e.Phase) }},
	}

	summary, err := o.Run(context.Background(), baseRequest(t, csvPath))
	require.NoError(t, err)

	assert.Equal(t, 4, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, int64(400), summary.TotalBytes)

	// each fetched descriptor carries its observation point
	require.Len(t, fetched, 4)
	for _, desc := range fetched {
		assert.False(t, desc.Observation.Timestamp.IsZero())
	}

	assert.Contains(t, phases, "parsing")
	assert.Contains(t, phases, "searching")
	assert.Contains(t, phases, "downloading")
	assert.Equal(t, "done", phases[len(phases)-1])
}

func TestRun_AuthRejectionAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123", "2024-06-15,14:15:20.456")

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, pkgerrors.Wrap(pkgerrors.ErrAuth, "HTTP 401")).Times(1)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: mocks.NewMockFetcher(ctrl)}

	_, err := o.Run(context.Background(), baseRequest(t, csvPath))
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrAuth)
}

func TestRun_EmptyResultsAreNotErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123", "2024-06-15,14:15:20.456")

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(2)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: mocks.NewMockFetcher(ctrl)}

	summary, err := o.Run(context.Background(), baseRequest(t, csvPath))
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalRequested)
	assert.Empty(t, summary.Errors)
}

func TestRun_SearchFailureIsIsolatedPerPoint(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123", "2024-06-15,14:15:20.456")

	searcher := mocks.NewMockSearcher(ctrl)
	gomock.InOrder(
		searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, errors.New("catalogue hiccup")),
		searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
			Return([]model.FileDescriptor{descriptor(t, "ECA_EXBA_ATL_NOM_1B.ZIP", "BA")}, nil),
	)

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess, BytesWritten: 100}
		})

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: fetcher}

	summary, err := o.Run(context.Background(), baseRequest(t, csvPath))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "catalogue hiccup")
}

func TestRun_BaselineFilterAppliesBeforeFetch(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]model.FileDescriptor{
		descriptor(t, "ECA_EXAC_ATL_NOM_1B.ZIP", "AC"),
		descriptor(t, "ECA_EXBA_ATL_NOM_1B.ZIP", "BA"),
	}, nil)

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			assert.Equal(t, "BA", desc.Baseline)
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess}
		}).Times(1)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: fetcher}

	summary, err := o.Run(context.Background(), baseRequest(t, csvPath))
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRun_ExtractionAfterSuccessfulDownload(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")
	req := baseRequest(t, csvPath)
	req.Extract = true

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.FileDescriptor{descriptor(t, "ECA_EXBA_ATL_NOM_1B.ZIP", "BA")}, nil)

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess}
		})

	extractor := mocks.NewMockExtractor(ctrl)
	extractor.EXPECT().CanExtract("ECA_EXBA_ATL_NOM_1B.ZIP").Return(true)
	extractor.EXPECT().ExtractAll(gomock.Any(),
		filepath.Join(req.Dir, "ECA_EXBA_ATL_NOM_1B.ZIP"),
		filepath.Join(req.Dir, "ECA_EXBA_ATL_NOM_1B")).Return(nil)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: fetcher, Extract: extractor}

	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)
}

func TestRun_ExtractionFailureIsRecorded(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")
	req := baseRequest(t, csvPath)
	req.Extract = true

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).
		Return([]model.FileDescriptor{descriptor(t, "ECA_EXBA_ATL_NOM_1B.ZIP", "BA")}, nil)

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess}
		})

	extractor := mocks.NewMockExtractor(ctrl)
	extractor.EXPECT().CanExtract(gomock.Any()).Return(true)
	extractor.EXPECT().ExtractAll(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("corrupt archive"))

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: fetcher, Extract: extractor}

	summary, err := o.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "corrupt archive")
}

func TestRun_CancellationStopsBetweenFetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")

	ctx, cancel := context.WithCancel(context.Background())

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return([]model.FileDescriptor{
		descriptor(t, "ECA_EXBA_ATL_NOM_1B_A.ZIP", "BA"),
		descriptor(t, "ECA_EXBA_ATL_NOM_1B_B.ZIP", "BA"),
	}, nil)

	fetcher := mocks.NewMockFetcher(ctrl)
	fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, desc model.FileDescriptor, _ download.Options) model.DownloadResult {
			cancel()
			return model.DownloadResult{Descriptor: desc, Outcome: model.OutcomeSuccess}
		}).Times(1)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: fetcher}

	summary, err := o.Run(ctx, baseRequest(t, csvPath))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, summary.Succeeded)
}

func TestRun_RelativeDirRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")
	req := baseRequest(t, csvPath)
	req.Dir = "downloads"

	o := &orchestrator.Orchestrator{
		Catalog: mocks.NewMockSearcher(ctrl),
		Engine:  mocks.NewMockFetcher(ctrl),
	}

	_, err := o.Run(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidPath)
}

func TestRun_UnreadableTableAborts(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := baseRequest(t, filepath.Join(t.TempDir(), "missing.csv"))

	o := &orchestrator.Orchestrator{
		Catalog: mocks.NewMockSearcher(ctrl),
		Engine:  mocks.NewMockFetcher(ctrl),
	}

	_, err := o.Run(context.Background(), req)
	require.Error(t, err)
}

func TestRun_WritesSummaryFile(t *testing.T) {
	ctrl := gomock.NewController(t)
	csvPath := writeObservations(t, "2024-06-15,12:30:45.123")
	req := baseRequest(t, csvPath)
	req.SummaryPath = filepath.Join(t.TempDir(), "summary.json")

	searcher := mocks.NewMockSearcher(ctrl)
	searcher.EXPECT().Search(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	o := &orchestrator.Orchestrator{Catalog: searcher, Engine: mocks.NewMockFetcher(ctrl)}

	_, err := o.Run(context.Background(), req)
	require.NoError(t, err)

	_, statErr := os.Stat(req.SummaryPath)
	assert.NoError(t, statErr)
}
