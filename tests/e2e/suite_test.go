//go:build integration

package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/samber/lo"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/you-humble/repair-shop/internal/migrator"
	"github.com/you-humble/repair-shop/internal/model"
	ordrepository "github.com/you-humble/repair-shop/internal/repository/order"
	salerepository "github.com/you-humble/repair-shop/internal/repository/sale"
	stockrepository "github.com/you-humble/repair-shop/internal/repository/stock"
	ordservice "github.com/you-humble/repair-shop/internal/service/repairorder"
	saleservice "github.com/you-humble/repair-shop/internal/service/sale"
	stockservice "github.com/you-humble/repair-shop/internal/service/stock"
)

const (
	pgImage = "postgres:17.0-alpine3.20"

	pgUser       = "repair-shop-user"
	pgPass       = "12CXZ43_U_w"
	pgDB         = "repair-shop-db"
	migrationDir = "../../migrations"
)

var (
	ctx context.Context

	pgC  *postgres.PostgresContainer
	pool *pgxpool.Pool

	stockRepo stockservice.StockRepository
	saleRepo  saleservice.SaleRepository
	ordRepo   ordservice.OrderRepository
)

func TestIntegration(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Repair Shop Repository Integration Suite")
}

var _ = BeforeSuite(func() {
	ctx = context.Background()

	By("starting postgres container")
	var err error
	pgC, err = postgres.Run(ctx,
		pgImage,
		postgres.WithDatabase(pgDB),
		postgres.WithUsername(pgUser),
		postgres.WithPassword(pgPass),
		tc.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp").WithStartupTimeout(60*time.Second),
		),
	)
	Expect(err).NotTo(HaveOccurred())

	By("building postgres connection string")
	dbURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	Expect(err).NotTo(HaveOccurred())

	By("creating pgx pool")
	pool, err = pgxpool.New(ctx, dbURL)
	Expect(err).NotTo(HaveOccurred())

	Eventually(func(g Gomega) {
		err := pool.Ping(ctx)
		g.Expect(err).NotTo(HaveOccurred())
	}).WithTimeout(10 * time.Second).WithPolling(200 * time.Millisecond).Should(Succeed())

	m := migrator.NewMigrator(
		stdlib.OpenDBFromPool(pool),
		migrationDir,
	)

	By("running migrations")
	Expect(m.Up()).To(Succeed())
	defer m.Close()

	By("creating repositories")
	ledger := stockrepository.NewStockRepository(pool)
	stockRepo = ledger
	saleRepo = salerepository.NewSaleRepository(pool, ledger)
	ordRepo = ordrepository.NewOrderRepository(pool)
})

var _ = AfterSuite(func() {
	if pool != nil {
		pool.Close()
	}
	if pgC != nil {
		_ = pgC.Terminate(ctx)
	}
})

var _ = BeforeEach(func() {
	By("cleaning tables")
	_, err := pool.Exec(ctx,
		`TRUNCATE TABLE sale_items, sales, payments, quotation_lines,
		 repair_transitions, repair_orders, stock_batches, products
		 RESTART IDENTITY CASCADE`)
	Expect(err).NotTo(HaveOccurred())
})

func seedProduct(priceCents int64, stock int32) *model.Product {
	prd, err := stockRepo.CreateProduct(ctx, model.CreateProductParams{
		Name:       gofakeit.ProductName(),
		PriceCents: priceCents,
		MinStock:   1,
	})
	Expect(err).NotTo(HaveOccurred())

	if stock > 0 {
		_, err = stockRepo.ReceiveBatch(ctx, model.ReceiveBatchParams{
			ProductID:     prd.ID,
			Quantity:      stock,
			UnitCostCents: priceCents / 2,
			IntakeDate:    time.Now().UTC(),
		})
		Expect(err).NotTo(HaveOccurred())
	}

	return prd
}

var _ = Describe("Stock ledger", func() {
	Context("ReserveAndDecrement", func() {
		It("lets exactly one of two concurrent callers take the last units", func() {
			prd := seedProduct(10_000, 5)

			By("racing two decrements for the whole remaining stock")
			errCh := make(chan error, 2)
			for range 2 {
				go func() {
					errCh <- stockRepo.ReserveAndDecrement(ctx, prd.ID, 5)
				}()
			}

			errs := make([]error, 0, 2)
			for range 2 {
				errs = append(errs, <-errCh)
			}

			Expect(lo.Count(errs, nil)).To(Equal(1))

			failed := lo.Filter(errs, func(e error, _ int) bool { return e != nil })
			Expect(failed).To(HaveLen(1))
			Expect(failed[0]).To(MatchError(model.ErrInsufficientStock))

			By("verifying nothing was sold twice")
			available, err := stockRepo.AvailableStock(ctx, prd.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(available).To(Equal(int32(0)))
		})

		It("drains older batches before newer ones", func() {
			prd := seedProduct(10_000, 0)

			older, err := stockRepo.ReceiveBatch(ctx, model.ReceiveBatchParams{
				ProductID:  prd.ID,
				Quantity:   3,
				IntakeDate: time.Now().UTC().Add(-48 * time.Hour),
			})
			Expect(err).NotTo(HaveOccurred())

			newer, err := stockRepo.ReceiveBatch(ctx, model.ReceiveBatchParams{
				ProductID:  prd.ID,
				Quantity:   3,
				IntakeDate: time.Now().UTC(),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(stockRepo.ReserveAndDecrement(ctx, prd.ID, 4)).To(Succeed())

			var olderQty, newerQty int32
			Expect(pool.QueryRow(ctx,
				"SELECT quantity FROM stock_batches WHERE id = $1", older.ID,
			).Scan(&olderQty)).To(Succeed())
			Expect(pool.QueryRow(ctx,
				"SELECT quantity FROM stock_batches WHERE id = $1", newer.ID,
			).Scan(&newerQty)).To(Succeed())

			Expect(olderQty).To(Equal(int32(0)))
			Expect(newerQty).To(Equal(int32(2)))
		})
	})
})

var _ = Describe("Sale transaction", func() {
	Context("CreateSale", func() {
		It("commits items, total and decrements as one unit", func() {
			prdA := seedProduct(1_000, 10)
			prdB := seedProduct(500, 10)

			sale, err := saleRepo.CreateSale(ctx, model.ProcessSaleParams{
				CustomerID: uuid.New(),
				SellerID:   uuid.New(),
				Lines: []model.SaleLine{
					{ProductID: prdA.ID, Quantity: 2},
					{ProductID: prdB.ID, Quantity: 3},
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(sale.TotalCents).To(Equal(int64(2*1_000 + 3*500)))
			Expect(sale.Items).To(HaveLen(2))

			availA, err := stockRepo.AvailableStock(ctx, prdA.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(availA).To(Equal(int32(8)))

			availB, err := stockRepo.AvailableStock(ctx, prdB.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(availB).To(Equal(int32(7)))
		})

		It("rolls back earlier decrements when a later line cannot be fulfilled", func() {
			prdA := seedProduct(1_000, 10)
			prdB := seedProduct(500, 10)
			prdC := seedProduct(2_000, 1)

			_, err := saleRepo.CreateSale(ctx, model.ProcessSaleParams{
				CustomerID: uuid.New(),
				SellerID:   uuid.New(),
				Lines: []model.SaleLine{
					{ProductID: prdA.ID, Quantity: 2},
					{ProductID: prdB.ID, Quantity: 3},
					{ProductID: prdC.ID, Quantity: 5},
				},
			})
			Expect(err).To(MatchError(model.ErrInsufficientStock))

			By("verifying stock of the earlier lines is untouched")
			for _, check := range []struct {
				id   uuid.UUID
				want int32
			}{
				{prdA.ID, 10}, {prdB.ID, 10}, {prdC.ID, 1},
			} {
				available, err := stockRepo.AvailableStock(ctx, check.id)
				Expect(err).NotTo(HaveOccurred())
				Expect(available).To(Equal(check.want))
			}

			By("verifying no sale rows were written")
			var sales, items int
			Expect(pool.QueryRow(ctx, "SELECT count(*) FROM sales").Scan(&sales)).To(Succeed())
			Expect(pool.QueryRow(ctx, "SELECT count(*) FROM sale_items").Scan(&items)).To(Succeed())
			Expect(sales).To(BeZero())
			Expect(items).To(BeZero())
		})
	})
})

var _ = Describe("Repair order audit trail", func() {
	newOrder := func() *model.RepairOrder {
		ord, err := ordRepo.Create(ctx, model.CreateOrderParams{
			CustomerID:  uuid.New(),
			DeviceType:  "phone",
			DeviceBrand: gofakeit.Company(),
			Fault:       "does not boot",
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(ord.State).To(Equal(model.StateReceived))
		return ord
	}

	It("keeps the order state equal to the latest transition row", func() {
		ord := newOrder()
		actorID := uuid.New()

		Expect(ordRepo.UpdateState(ctx, model.TransitionParams{
			OrderID: ord.ID,
			Target:  model.StateDiagnosing,
			ActorID: actorID,
		}, model.StateReceived)).To(Succeed())

		Expect(ordRepo.FinalizeDiagnosis(ctx, model.FinalizeDiagnosisParams{
			OrderID: ord.ID,
			Lines: []model.QuotationLineInput{
				{Description: "replace battery", Quantity: 1, UnitCostCents: 12_000},
			},
			ActorID: actorID,
		}, 12_000)).To(Succeed())

		got, err := ordRepo.OrderByID(ctx, ord.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.State).To(Equal(model.StateQuotationReady))

		trs, err := ordRepo.Transitions(ctx, ord.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(trs).To(HaveLen(2))

		By("verifying the trail is an unbroken chain ending in the current state")
		Expect(trs[0].FromState).To(Equal(model.StateReceived))
		for i := 1; i < len(trs); i++ {
			Expect(trs[i].FromState).To(Equal(trs[i-1].ToState))
		}
		Expect(trs[len(trs)-1].ToState).To(Equal(got.State))
	})

	It("rejects a stale transition and leaves the trail untouched", func() {
		ord := newOrder()
		actorID := uuid.New()

		Expect(ordRepo.UpdateState(ctx, model.TransitionParams{
			OrderID: ord.ID,
			Target:  model.StateDiagnosing,
			ActorID: actorID,
		}, model.StateReceived)).To(Succeed())

		By("replaying the same transition after the state already moved")
		err := ordRepo.UpdateState(ctx, model.TransitionParams{
			OrderID: ord.ID,
			Target:  model.StateDiagnosing,
			ActorID: actorID,
		}, model.StateReceived)
		Expect(err).To(MatchError(model.ErrIllegalTransition))

		got, err := ordRepo.OrderByID(ctx, ord.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.State).To(Equal(model.StateDiagnosing))

		trs, err := ordRepo.Transitions(ctx, ord.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(trs).To(HaveLen(1))
	})
})
