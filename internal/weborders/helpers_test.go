package weborders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/cafepos-backend/internal/notifier"
	"github.com/angelmondragon/cafepos-backend/internal/orders"
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
)

func setupWebOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

type eventLog struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (l *eventLog) handle(_ context.Context, e notifier.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) count(t notifier.Type) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.events {
		if e.Type == t {
			n++
		}
	}
	return n
}

type harness struct {
	conn   *gorm.DB
	bus    *notifier.Bus
	orders orders.Service
	svc    Service
	events *eventLog
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := setupWebOrdersTestDB(t)
	bus := notifier.NewBus(logger.Nop())
	events := &eventLog{}
	bus.SubscribeAll(events.handle)

	tx := db.NewFromGorm(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logger.Nop())

	tick := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	orderSvc, err := orders.NewService(orders.Deps{
		Repo:      orders.NewRepository(conn),
		Tx:        tx,
		Outbox:    emitter,
		Sequencer: orders.NewDBSequencer("orders"),
		Notifier:  bus,
		Now:       now,
	})
	require.NoError(t, err)

	svc, err := NewService(Deps{
		Repo:     NewRepository(conn),
		Tx:       tx,
		Outbox:   emitter,
		Orders:   orderSvc,
		Notifier: bus,
		Now:      now,
	})
	require.NoError(t, err)

	return &harness{conn: conn, bus: bus, orders: orderSvc, svc: svc, events: events}
}

func strPtr(v string) *string {
	return &v
}

func webInput(id, status string) IntakeInput {
	in := IntakeInput{ID: id, Status: status}
	in.Customer.Name = "Ana"
	in.Customer.Address = strPtr("Rua A, 10")
	in.Items = []IntakeItem{{Name: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("5.50")}}
	return in
}
