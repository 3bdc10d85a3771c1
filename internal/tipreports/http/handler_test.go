package tipreportshttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/tipbook/backoffice/internal/csvcodec"
	"github.com/tipbook/backoffice/internal/tipreports"
)

type stubTipReportService struct {
	listFn  func(ctx context.Context, limit int) ([]tipreports.SavedReport, error)
	loadFn  func(ctx context.Context, filename string) (*csvcodec.ParsedTipReport, error)
	buildFn func(ctx context.Context, start, end time.Time) (tipreports.SavedReport, error)
}

func (s *stubTipReportService) List(ctx context.Context, limit int) ([]tipreports.SavedReport, error) {
	return s.listFn(ctx, limit)
}

func (s *stubTipReportService) Load(ctx context.Context, filename string) (*csvcodec.ParsedTipReport, error) {
	return s.loadFn(ctx, filename)
}

func (s *stubTipReportService) Build(ctx context.Context, start, end time.Time) (tipreports.SavedReport, error) {
	return s.buildFn(ctx, start, end)
}

func newTestRouter(svc tipReportService) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestListUsesDefaultAndRequestedLimit(t *testing.T) {
	var limits []int
	svc := &stubTipReportService{
		listFn: func(_ context.Context, limit int) ([]tipreports.SavedReport, error) {
			limits = append(limits, limit)
			return []tipreports.SavedReport{{Filename: "tip-report-2025-06-01-to-2025-06-07.csv"}}, nil
		},
	}
	router := newTestRouter(svc)
	for _, target := range []string{"/tip-reports", "/tip-reports?limit=3", "/tip-reports?limit=abc", "/tip-reports?limit=-1"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		require.Equal(t, http.StatusOK, rec.Code, target)
	}
	require.Equal(t, []int{10, 3, 10, 10}, limits)
}

func TestShowReturnsParsedReport(t *testing.T) {
	svc := &stubTipReportService{
		loadFn: func(_ context.Context, filename string) (*csvcodec.ParsedTipReport, error) {
			require.Equal(t, "tip-report-2025-06-01-to-2025-06-07.csv", filename)
			return &csvcodec.ParsedTipReport{
				Title:     "Employee Tip Report",
				DateRange: "2025-06-01 to 2025-06-07",
				Summary:   []csvcodec.TipSummaryRow{{EmployeeName: "Jane Doe", TakeHome: "$24.00"}},
				Details:   []csvcodec.EmployeeDetail{},
			}, nil
		},
	}
	rec := httptest.NewRecorder()
	newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tip-reports/tip-report-2025-06-01-to-2025-06-07.csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body showResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "tip-report-2025-06-01-to-2025-06-07.csv", body.Filename)
	require.Equal(t, "Jane Doe", body.Report.Summary[0].EmployeeName)
}

func TestShowMapsLoadErrors(t *testing.T) {
	cases := map[string]struct {
		err  error
		code int
	}{
		"missing":    {err: fmt.Errorf("%w: x.csv", tipreports.ErrNotFound), code: http.StatusNotFound},
		"unreadable": {err: fmt.Errorf("%w: x.csv", tipreports.ErrUnreadable), code: http.StatusNotFound},
		"bad name":   {err: tipreports.ErrInvalidFilename, code: http.StatusBadRequest},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			svc := &stubTipReportService{
				loadFn: func(context.Context, string) (*csvcodec.ParsedTipReport, error) { return nil, tc.err },
			}
			rec := httptest.NewRecorder()
			newTestRouter(svc).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tip-reports/x.csv", nil))
			require.Equal(t, tc.code, rec.Code)
		})
	}
}

func TestBuildParsesDates(t *testing.T) {
	svc := &stubTipReportService{
		buildFn: func(_ context.Context, start, end time.Time) (tipreports.SavedReport, error) {
			require.Equal(t, "2025-06-01", start.Format("2006-01-02"))
			require.Equal(t, "2025-06-07", end.Format("2006-01-02"))
			return tipreports.SavedReport{Filename: "tip-report-2025-06-01-to-2025-06-07.csv", StartDate: &start, EndDate: &end}, nil
		},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tip-reports", strings.NewReader(`{"start_date":"2025-06-01","end_date":"2025-06-07"}`))
	newTestRouter(svc).ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var saved tipreports.SavedReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.Equal(t, "tip-report-2025-06-01-to-2025-06-07.csv", saved.Filename)
}

func TestBuildRejectsBadInput(t *testing.T) {
	svc := &stubTipReportService{
		buildFn: func(context.Context, time.Time, time.Time) (tipreports.SavedReport, error) {
			return tipreports.SavedReport{}, tipreports.ErrNoFinalizedReports
		},
	}
	router := newTestRouter(svc)
	for _, body := range []string{
		`{"start_date":"06/01/2025","end_date":"2025-06-07"}`,
		`{"start_date":"2025-06-01"}`,
		`{"start_date":"2025-06-01","end_date":"2025-06-07","extra":1}`,
		`{"start_date":"2025-06-01","end_date":"2025-06-07"}`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tip-reports", strings.NewReader(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}
