package service

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/merchware/stock-service/internal/domain"
	"github.com/merchware/stock-service/internal/event"
	apperrors "github.com/merchware/stock-service/pkg/errors"
	pkgkafka "github.com/merchware/stock-service/pkg/kafka"
)

// --- Mock StockEntryRepository ---

type mockEntryRepository struct {
	mock.Mock
}

func (m *mockEntryRepository) Create(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) GetByID(ctx context.Context, id string) (*domain.StockEntry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) GetByProductVariant(ctx context.Context, productID string, variantID *string) (*domain.StockEntry, error) {
	args := m.Called(ctx, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) List(ctx context.Context, productID, variantID *string) ([]domain.StockEntry, error) {
	args := m.Called(ctx, productID, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) Update(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) Upsert(ctx context.Context, entry *domain.StockEntry) (*domain.StockEntry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockEntry), args.Error(1)
}

func (m *mockEntryRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockEntryRepository) DeleteByProductVariant(ctx context.Context, productID string, variantID *string) error {
	args := m.Called(ctx, productID, variantID)
	return args.Error(0)
}

func (m *mockEntryRepository) ListLowStock(ctx context.Context, multiplier float64) ([]domain.StockEntry, error) {
	args := m.Called(ctx, multiplier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StockEntry), args.Error(1)
}

// --- Mock ProductRepository ---

type mockProductRepository struct {
	mock.Mock
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	args := m.Called(ctx, product)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockProductRepository) List(ctx context.Context, page, perPage int) ([]domain.Product, int, error) {
	args := m.Called(ctx, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Product), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	args := m.Called(ctx, product)
	return args.Error(0)
}

func (m *mockProductRepository) UpdateStockFields(ctx context.Context, productID string, baseStock, minStock int, status string, published bool) error {
	args := m.Called(ctx, productID, baseStock, minStock, status, published)
	return args.Error(0)
}

func (m *mockProductRepository) UpdateStatus(ctx context.Context, productID, status string, published bool) error {
	args := m.Called(ctx, productID, status, published)
	return args.Error(0)
}

func (m *mockProductRepository) UpdateVariantStock(ctx context.Context, variantID string, stock, minStock int, status string, published bool) error {
	args := m.Called(ctx, variantID, stock, minStock, status, published)
	return args.Error(0)
}

func (m *mockProductRepository) DeductBaseStock(ctx context.Context, productID string, quantity int) (int, int, error) {
	args := m.Called(ctx, productID, quantity)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) DeductVariantStock(ctx context.Context, variantID string, quantity int) (int, int, error) {
	args := m.Called(ctx, variantID, quantity)
	return args.Int(0), args.Int(1), args.Error(2)
}

func (m *mockProductRepository) ListVariantIDs(ctx context.Context, productID string) ([]string, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockProductRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// newTestProducer builds an event producer over a Kafka writer with no real
// broker behind it; publishes fail and are logged, which matches the
// best-effort semantics the services rely on.
func newTestProducer(logger *slog.Logger) *event.Producer {
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func newTestSyncService(entryRepo *mockEntryRepository, productRepo *mockProductRepository) *SyncService {
	logger := newTestLogger()
	return NewSyncService(entryRepo, productRepo, newTestProducer(logger), logger)
}

func strPtr(s string) *string { return &s }

func simpleProduct(id string) *domain.Product {
	base := 10
	min := 3
	return &domain.Product{
		ID:        id,
		Name:      "Canvas Tote",
		Type:      domain.ProductTypePhysical,
		Structure: domain.StructureSimple,
		BaseStock: &base,
		MinStock:  &min,
		Status:    domain.StatusSelling,
		Published: true,
	}
}

func variantProduct(id string, variants ...domain.Variant) *domain.Product {
	return &domain.Product{
		ID:        id,
		Name:      "Wool Sweater",
		Type:      domain.ProductTypePhysical,
		Structure: domain.StructureVariant,
		Status:    domain.StatusSelling,
		Published: true,
		Variants:  variants,
	}
}

// =========================================================================
// SyncEntry
// =========================================================================

func TestSyncEntry_SimpleProduct(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "prod-1").Return(simpleProduct("prod-1"), nil)
	productRepo.On("UpdateStockFields", ctx, "prod-1", 2, 3, domain.StatusLowStock, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", Quantity: 2, MinStock: 3}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestSyncEntry_SimpleProduct_OutOfStock(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "prod-1").Return(simpleProduct("prod-1"), nil)
	productRepo.On("UpdateStockFields", ctx, "prod-1", 0, 3, domain.StatusOutOfStock, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", Quantity: 0, MinStock: 3}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestSyncEntry_Variant_UpdatesVariantAndAggregate(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", ProductID: "prod-1", Stock: 10, MinStock: 2, Status: domain.StatusSelling, Published: true},
		domain.Variant{ID: "var-2", ProductID: "prod-1", Stock: 0, MinStock: 2, Status: domain.StatusOutOfStock, Published: true},
	)

	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)
	productRepo.On("UpdateVariantStock", ctx, "var-1", 1, 2, domain.StatusLowStock, true).Return(nil)
	// With var-1 now low_stock and var-2 out, no variant is freely available
	// but one is still purchasable: the aggregate flips to low_stock.
	productRepo.On("UpdateStatus", ctx, "prod-1", domain.StatusLowStock, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", VariantID: strPtr("var-1"), Quantity: 1, MinStock: 2}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestSyncEntry_Variant_AggregateUnchangedSkipsWrite(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", ProductID: "prod-1", Stock: 10, MinStock: 2, Status: domain.StatusSelling, Published: true},
	)

	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)
	productRepo.On("UpdateVariantStock", ctx, "var-1", 20, 2, domain.StatusSelling, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", VariantID: strPtr("var-1"), Quantity: 20, MinStock: 2}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	productRepo.AssertExpectations(t)
}

func TestSyncEntry_ProductLevelEntryOnVariantProduct_RecomputesAggregate(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", ProductID: "prod-1", Stock: 5, MinStock: 1, Status: domain.StatusSelling, Published: true},
	)
	product.Status = domain.StatusDraft
	product.Published = false
	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)
	// The stray product-level entry must not overwrite the aggregate; the
	// top-level state is re-derived from the variants instead.
	productRepo.On("UpdateStatus", ctx, "prod-1", domain.StatusSelling, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", Quantity: 7, MinStock: 2}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertNotCalled(t, "UpdateStockFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	productRepo.AssertExpectations(t)
}

func TestSyncEntry_DigitalProduct_NoOp(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	digital := &domain.Product{
		ID:        "prod-1",
		Type:      domain.ProductTypeDigital,
		Structure: domain.StructureSimple,
	}
	productRepo.On("GetByID", ctx, "prod-1").Return(digital, nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", Quantity: 5}

	err := svc.SyncEntry(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertNotCalled(t, "UpdateStockFields", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncEntry_ProductNotFound(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "gone").Return(nil, apperrors.ErrNotFound)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "gone", Quantity: 5}

	err := svc.SyncEntry(ctx, entry)

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSyncEntry_VariantNotFound(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", ProductID: "prod-1", Stock: 10, MinStock: 2, Status: domain.StatusSelling, Published: true},
	)
	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", VariantID: strPtr("var-gone"), Quantity: 5, MinStock: 1}

	err := svc.SyncEntry(ctx, entry)

	assert.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	productRepo.AssertNotCalled(t, "UpdateVariantStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =========================================================================
// SyncEntryDeleted
// =========================================================================

func TestSyncEntryDeleted_SimpleProduct_ZeroesStock(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "prod-1").Return(simpleProduct("prod-1"), nil)
	// Owner ends up out_of_stock but still published.
	productRepo.On("UpdateStockFields", ctx, "prod-1", 0, 3, domain.StatusOutOfStock, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", Quantity: 7, MinStock: 3}

	err := svc.SyncEntryDeleted(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestSyncEntryDeleted_Variant_ZeroesAndRecomputes(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", ProductID: "prod-1", Stock: 5, MinStock: 2, Status: domain.StatusSelling, Published: true},
	)
	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)
	productRepo.On("UpdateVariantStock", ctx, "var-1", 0, 2, domain.StatusOutOfStock, true).Return(nil)
	// The only variant is now out of stock, so the aggregate follows.
	productRepo.On("UpdateStatus", ctx, "prod-1", domain.StatusOutOfStock, true).Return(nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", VariantID: strPtr("var-1"), Quantity: 5, MinStock: 2}

	err := svc.SyncEntryDeleted(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestSyncEntryDeleted_VariantAlreadyGone(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1")
	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)

	entry := &domain.StockEntry{ID: "entry-1", ProductID: "prod-1", VariantID: strPtr("var-gone"), Quantity: 5, MinStock: 2}

	err := svc.SyncEntryDeleted(ctx, entry)

	require.NoError(t, err)
	productRepo.AssertNotCalled(t, "UpdateVariantStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =========================================================================
// RecomputeAggregate
// =========================================================================

func TestRecomputeAggregate_AllVariantsOut(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	product := variantProduct("prod-1",
		domain.Variant{ID: "var-1", Stock: 0, MinStock: 1, Status: domain.StatusOutOfStock, Published: true},
		domain.Variant{ID: "var-2", Stock: 0, MinStock: 1, Status: domain.StatusOutOfStock, Published: true},
	)
	productRepo.On("GetByID", ctx, "prod-1").Return(product, nil)
	productRepo.On("UpdateStatus", ctx, "prod-1", domain.StatusOutOfStock, true).Return(nil)

	err := svc.RecomputeAggregate(ctx, "prod-1")

	require.NoError(t, err)
	productRepo.AssertExpectations(t)
}

func TestRecomputeAggregate_SimpleProduct_NoOp(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	productRepo.On("GetByID", ctx, "prod-1").Return(simpleProduct("prod-1"), nil)

	err := svc.RecomputeAggregate(ctx, "prod-1")

	require.NoError(t, err)
	productRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// =========================================================================
// BulkSync
// =========================================================================

func TestBulkSync_AllEntriesSucceed(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	entries := []domain.StockEntry{
		{ID: "entry-1", ProductID: "prod-1", Quantity: 10, MinStock: 2},
		{ID: "entry-2", ProductID: "prod-2", Quantity: 0, MinStock: 2},
	}
	entryRepo.On("List", ctx, (*string)(nil), (*string)(nil)).Return(entries, nil)
	productRepo.On("GetByID", ctx, "prod-1").Return(simpleProduct("prod-1"), nil)
	productRepo.On("GetByID", ctx, "prod-2").Return(simpleProduct("prod-2"), nil)
	productRepo.On("UpdateStockFields", ctx, "prod-1", 10, 2, domain.StatusSelling, true).Return(nil)
	productRepo.On("UpdateStockFields", ctx, "prod-2", 0, 2, domain.StatusOutOfStock, true).Return(nil)

	result, err := svc.BulkSync(ctx, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	productRepo.AssertExpectations(t)
}

func TestBulkSync_FailureIsolatedPerEntry(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	entries := []domain.StockEntry{
		{ID: "entry-1", ProductID: "prod-gone", Quantity: 10, MinStock: 2},
		{ID: "entry-2", ProductID: "prod-2", Quantity: 10, MinStock: 2},
	}
	entryRepo.On("List", ctx, (*string)(nil), (*string)(nil)).Return(entries, nil)
	productRepo.On("GetByID", ctx, "prod-gone").Return(nil, apperrors.ErrNotFound)
	productRepo.On("GetByID", ctx, "prod-2").Return(simpleProduct("prod-2"), nil)
	productRepo.On("UpdateStockFields", ctx, "prod-2", 10, 2, domain.StatusSelling, true).Return(nil)

	result, err := svc.BulkSync(ctx, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "entry-1")
}

func TestBulkSync_OrphanedVariantEntryDeleted(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	entries := []domain.StockEntry{
		{ID: "entry-orphan", ProductID: "prod-1", VariantID: strPtr("var-removed"), Quantity: 3, MinStock: 1},
	}
	entryRepo.On("List", ctx, strPtr("prod-1"), (*string)(nil)).Return(entries, nil)
	productRepo.On("ListVariantIDs", ctx, "prod-1").Return([]string{"var-1"}, nil)
	entryRepo.On("Delete", ctx, "entry-orphan").Return(nil)

	result, err := svc.BulkSync(ctx, strPtr("prod-1"), nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "orphan")
	entryRepo.AssertExpectations(t)
	// No sync for a deleted orphan.
	productRepo.AssertNotCalled(t, "UpdateVariantStock", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBulkSync_OrphanedProductEntryDeleted(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	entries := []domain.StockEntry{
		{ID: "entry-orphan", ProductID: "prod-gone", VariantID: strPtr("var-1"), Quantity: 3, MinStock: 1},
	}
	entryRepo.On("List", ctx, (*string)(nil), (*string)(nil)).Return(entries, nil)
	// A vanished product has no variant ids, so its entries read as orphans.
	productRepo.On("ListVariantIDs", ctx, "prod-gone").Return([]string{}, nil)
	entryRepo.On("Delete", ctx, "entry-orphan").Return(nil)

	result, err := svc.BulkSync(ctx, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	require.Len(t, result.Messages, 1)
	assert.Contains(t, result.Messages[0], "orphan")
	entryRepo.AssertExpectations(t)
}

func TestBulkSync_EmptyLedger(t *testing.T) {
	entryRepo := new(mockEntryRepository)
	productRepo := new(mockProductRepository)
	svc := newTestSyncService(entryRepo, productRepo)
	ctx := context.Background()

	entryRepo.On("List", ctx, (*string)(nil), (*string)(nil)).Return([]domain.StockEntry{}, nil)

	result, err := svc.BulkSync(ctx, nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 0, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Empty(t, result.Messages)
}
