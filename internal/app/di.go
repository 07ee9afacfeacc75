package app

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/you-humble/repair-shop/internal/config"
	"github.com/you-humble/repair-shop/internal/converter"
	"github.com/you-humble/repair-shop/internal/migrator"
	ordrepository "github.com/you-humble/repair-shop/internal/repository/order"
	salerepository "github.com/you-humble/repair-shop/internal/repository/sale"
	stockrepository "github.com/you-humble/repair-shop/internal/repository/stock"
	pmtservice "github.com/you-humble/repair-shop/internal/service/payment"
	evtproducer "github.com/you-humble/repair-shop/internal/service/producer/events"
	quotservice "github.com/you-humble/repair-shop/internal/service/quotation"
	ordservice "github.com/you-humble/repair-shop/internal/service/repairorder"
	saleservice "github.com/you-humble/repair-shop/internal/service/sale"
	stockservice "github.com/you-humble/repair-shop/internal/service/stock"
	repairhttp "github.com/you-humble/repair-shop/internal/transport/http/repair/v1"
	salehttp "github.com/you-humble/repair-shop/internal/transport/http/sale/v1"
	stockhttp "github.com/you-humble/repair-shop/internal/transport/http/stock/v1"
	"github.com/you-humble/repair-shop/platform/closer"
	"github.com/you-humble/repair-shop/platform/kafka"
	"github.com/you-humble/repair-shop/platform/kafka/producer"
	"github.com/you-humble/repair-shop/platform/logger"
)

type Registrar interface {
	Register(r chi.Router)
}

// OrderRepository is the full contract of the order repository: lifecycle
// writes plus the payment and quotation reads that share its tables.
type OrderRepository interface {
	ordservice.OrderRepository
	pmtservice.PaymentRepository
	quotservice.QuotationRepository
}

// StockRepository adds the in-transaction ledger hooks the sale repository
// composes into its own unit of work.
type StockRepository interface {
	stockservice.StockRepository
	salerepository.StockLedger
}

type di struct {
	dbPool   *pgxpool.Pool
	migrator *migrator.Migrator

	orderRepository OrderRepository
	stockRepository StockRepository
	saleRepository  saleservice.SaleRepository

	syncProducer      sarama.SyncProducer
	deliveredProducer kafka.Producer
	completedProducer kafka.Producer
	eventProducer     *eventProducer

	conv evtproducer.Converter

	orderService     repairhttp.OrderService
	quotationService repairhttp.QuotationService
	paymentService   repairhttp.PaymentService
	stockService     stockhttp.StockService
	saleService      salehttp.SaleService

	orderHandler   Registrar
	paymentHandler Registrar
	stockHandler   Registrar
	saleHandler    Registrar

	router *chi.Mux
}

type eventProducer struct {
	ordservice.DeliveredSender
	saleservice.CompletedSender
}

func NewDI() *di { return &di{} }

func (d *di) DBPool(ctx context.Context) *pgxpool.Pool {
	if d.dbPool == nil {

		pool, err := pgxpool.New(ctx, config.C().Postgres.DSN())
		if err != nil {
			panic(fmt.Sprintf("failed to create pg pool: %v\n", err))
		}

		closer.AddNamed("PGX Pool",
			func(ctx context.Context) error {
				pool.Close()
				return nil
			})

		if err := pool.Ping(ctx); err != nil {
			panic(fmt.Sprintf("failed to ping db: %v\n", err))
		}

		d.dbPool = pool
	}

	return d.dbPool
}

func (d *di) Migrator(ctx context.Context) *migrator.Migrator {
	if d.migrator == nil {
		d.migrator = migrator.NewMigrator(
			stdlib.OpenDBFromPool(d.DBPool(ctx)),
			config.C().Postgres.MigrationDirectory(),
		)

		closer.AddNamed("Migrator",
			func(ctx context.Context) error {
				return d.migrator.Close()
			})
	}

	return d.migrator
}

func (d *di) OrderRepository(ctx context.Context) OrderRepository {
	if d.orderRepository == nil {
		d.orderRepository = ordrepository.NewOrderRepository(d.DBPool(ctx))
	}

	return d.orderRepository
}

func (d *di) StockRepository(ctx context.Context) StockRepository {
	if d.stockRepository == nil {
		d.stockRepository = stockrepository.NewStockRepository(d.DBPool(ctx))
	}

	return d.stockRepository
}

func (d *di) SaleRepository(ctx context.Context) saleservice.SaleRepository {
	if d.saleRepository == nil {
		d.saleRepository = salerepository.NewSaleRepository(
			d.DBPool(ctx),
			d.StockRepository(ctx),
		)
	}

	return d.saleRepository
}

func (d *di) KafkaConverter(ctx context.Context) evtproducer.Converter {
	if d.conv == nil {
		d.conv = converter.NewKafkaConverter()
	}

	return d.conv
}

func (d *di) SyncProducer(ctx context.Context) sarama.SyncProducer {
	if d.syncProducer == nil {
		cfg := config.C()

		p, err := sarama.NewSyncProducer(
			cfg.Kafka.Brokers(),
			cfg.Kafka.ProducerConfig(),
		)
		if err != nil {
			panic(fmt.Sprintf("failed to create sync producer: %s\n", err.Error()))
		}
		closer.AddNamed("Kafka sync producer", func(ctx context.Context) error {
			return p.Close()
		})

		d.syncProducer = p
	}

	return d.syncProducer
}

func (d *di) OrderDeliveredProducer(ctx context.Context) kafka.Producer {
	if d.deliveredProducer == nil {
		d.deliveredProducer = producer.NewProducer(
			d.SyncProducer(ctx),
			config.C().Kafka.OrderDeliveredTopic(),
			logger.L(),
		)
	}

	return d.deliveredProducer
}

func (d *di) SaleCompletedProducer(ctx context.Context) kafka.Producer {
	if d.completedProducer == nil {
		d.completedProducer = producer.NewProducer(
			d.SyncProducer(ctx),
			config.C().Kafka.SaleCompletedTopic(),
			logger.L(),
		)
	}

	return d.completedProducer
}

func (d *di) EventProducer(ctx context.Context) *eventProducer {
	if d.eventProducer == nil {
		p := evtproducer.NewEventProducer(
			d.OrderDeliveredProducer(ctx),
			d.SaleCompletedProducer(ctx),
			d.KafkaConverter(ctx),
		)
		d.eventProducer = &eventProducer{DeliveredSender: p, CompletedSender: p}
	}

	return d.eventProducer
}

func (d *di) OrderService(ctx context.Context) repairhttp.OrderService {
	if d.orderService == nil {
		d.orderService = ordservice.NewRepairOrderService(
			d.OrderRepository(ctx),
			d.EventProducer(ctx),
			config.C().Server.DBReadTimeout(),
			config.C().Server.DBWriteTimeout(),
		)
	}

	return d.orderService
}

func (d *di) QuotationService(ctx context.Context) repairhttp.QuotationService {
	if d.quotationService == nil {
		d.quotationService = quotservice.NewQuotationService(
			d.OrderRepository(ctx),
			config.C().Server.DBReadTimeout(),
		)
	}

	return d.quotationService
}

func (d *di) PaymentService(ctx context.Context) repairhttp.PaymentService {
	if d.paymentService == nil {
		d.paymentService = pmtservice.NewPaymentService(
			d.OrderRepository(ctx),
			config.C().Server.DBReadTimeout(),
			config.C().Server.DBWriteTimeout(),
		)
	}

	return d.paymentService
}

func (d *di) StockService(ctx context.Context) stockhttp.StockService {
	if d.stockService == nil {
		d.stockService = stockservice.NewStockService(
			d.StockRepository(ctx),
			config.C().Server.DBReadTimeout(),
			config.C().Server.DBWriteTimeout(),
		)
	}

	return d.stockService
}

func (d *di) SaleService(ctx context.Context) salehttp.SaleService {
	if d.saleService == nil {
		d.saleService = saleservice.NewSaleService(
			d.SaleRepository(ctx),
			d.EventProducer(ctx),
			config.C().Server.DBReadTimeout(),
			config.C().Server.DBWriteTimeout(),
		)
	}

	return d.saleService
}

func (d *di) OrderHandler(ctx context.Context) Registrar {
	if d.orderHandler == nil {
		d.orderHandler = repairhttp.NewOrderHandler(
			d.OrderService(ctx),
			d.QuotationService(ctx),
		)
	}

	return d.orderHandler
}

func (d *di) PaymentHandler(ctx context.Context) Registrar {
	if d.paymentHandler == nil {
		d.paymentHandler = repairhttp.NewPaymentHandler(d.PaymentService(ctx))
	}

	return d.paymentHandler
}

func (d *di) StockHandler(ctx context.Context) Registrar {
	if d.stockHandler == nil {
		d.stockHandler = stockhttp.NewStockHandler(d.StockService(ctx))
	}

	return d.stockHandler
}

func (d *di) SaleHandler(ctx context.Context) Registrar {
	if d.saleHandler == nil {
		d.saleHandler = salehttp.NewSaleHandler(d.SaleService(ctx))
	}

	return d.saleHandler
}

func (d *di) Router(_ context.Context) *chi.Mux {
	if d.router == nil {
		d.router = chi.NewRouter()
	}

	return d.router
}
