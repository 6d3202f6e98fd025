package billing

import (
	"context"
	"testing"
	"time"

	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/alttext/backend/internal/infrastructure/persistence"
	"github.com/alttext/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// 2025-03-10 falls in the [03-01, 04-01) period of an anchor-1 license
var billingNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

type storeFixture struct {
	licenses  *persistence.GormLicenseRepository
	sites     *persistence.GormSiteRepository
	records   *persistence.GormUsageRecordRepository
	summaries *persistence.GormQuotaSummaryRepository
	validator *licensingapp.Validator
}

func newStoreFixture(t *testing.T) *storeFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &storeFixture{
		licenses:  persistence.NewGormLicenseRepository(db),
		sites:     persistence.NewGormSiteRepository(db),
		records:   persistence.NewGormUsageRecordRepository(db),
		summaries: persistence.NewGormQuotaSummaryRepository(db),
	}
	f.validator = licensingapp.NewValidator(f.licenses, nil, nil)
	return f
}

func (f *storeFixture) quotaService(config QuotaServiceConfig, recorder metrics.Recorder) *QuotaService {
	s := NewQuotaService(f.validator, f.sites, f.summaries, f.records, recorder, config, zap.NewNop())
	s.now = testutil.FixedClock(billingNow)
	return s
}

func (f *storeFixture) usageService(recorder metrics.Recorder, log *zap.Logger) *UsageService {
	s := NewUsageService(f.validator, f.sites, f.records, f.summaries, recorder, log)
	s.now = testutil.FixedClock(billingNow)
	return s
}

func (f *storeFixture) license(t *testing.T, plan licensing.Plan) *licensing.License {
	t.Helper()
	l := testutil.NewLicense(t, plan)
	require.NoError(t, f.licenses.Save(context.Background(), l))
	return l
}

func (f *storeFixture) spend(t *testing.T, licenseID uuid.UUID, site, user string, credits int64, at time.Time) {
	t.Helper()
	r, err := billing.NewUsageRecord(licenseID, "generate", credits)
	require.NoError(t, err)
	require.NoError(t, f.records.Save(context.Background(), r.WithSite(site).WithUser(user).WithRecordedAt(at)))
}

// recorderSpy captures the metric calls made by a service
type recorderSpy struct {
	metrics.Nop
	denials  []string
	recorded []string
	failures int
}

func (r *recorderSpy) QuotaDenied(kind string) { r.denials = append(r.denials, kind) }

func (r *recorderSpy) UsageRecorded(status string, _ bool) { r.recorded = append(r.recorded, status) }

func (r *recorderSpy) UsageRecordFailed() { r.failures++ }

type mockUsageRecordRepository struct {
	mock.Mock
}

func (m *mockUsageRecordRepository) Save(ctx context.Context, record *billing.UsageRecord) error {
	return m.Called(ctx, record).Error(0)
}

func (m *mockUsageRecordRepository) SumByLicense(ctx context.Context, licenseID uuid.UUID, start, end time.Time) (int64, error) {
	args := m.Called(ctx, licenseID, start, end)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageRecordRepository) SumBySite(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) (int64, error) {
	args := m.Called(ctx, licenseID, siteHash, start, end)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageRecordRepository) AggregateByUser(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) ([]billing.UserUsage, error) {
	args := m.Called(ctx, licenseID, siteHash, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.UserUsage), args.Error(1)
}

func (m *mockUsageRecordRepository) AggregateBySite(ctx context.Context, licenseID uuid.UUID, start, end time.Time) ([]billing.SiteUsage, error) {
	args := m.Called(ctx, licenseID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]billing.SiteUsage), args.Error(1)
}

type mockQuotaSummaryRepository struct {
	mock.Mock
}

func (m *mockQuotaSummaryRepository) Find(ctx context.Context, licenseID uuid.UUID, periodStart time.Time) (*billing.QuotaSummary, error) {
	args := m.Called(ctx, licenseID, periodStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*billing.QuotaSummary), args.Error(1)
}

func (m *mockQuotaSummaryRepository) Upsert(ctx context.Context, summary *billing.QuotaSummary) error {
	return m.Called(ctx, summary).Error(0)
}
