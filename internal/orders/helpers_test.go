package orders

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
	"github.com/angelmondragon/cafepos-backend/pkg/db"
	"github.com/angelmondragon/cafepos-backend/pkg/db/models"
	"github.com/angelmondragon/cafepos-backend/pkg/enums"
	"github.com/angelmondragon/cafepos-backend/pkg/logger"
	"github.com/angelmondragon/cafepos-backend/pkg/outbox"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
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

type recordedEvents struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (r *recordedEvents) handle(_ context.Context, e notifier.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordedEvents) types() []notifier.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notifier.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	conn   *gorm.DB
	svc    Service
	events *recordedEvents
	outbox *outbox.Repository
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := setupOrdersTestDB(t)
	bus := notifier.NewBus(logger.Nop())
	events := &recordedEvents{}
	bus.SubscribeAll(events.handle)

	outboxRepo := outbox.NewRepository(conn)
	c := &clock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	svc, err := NewService(Deps{
		Repo:      NewRepository(conn),
		Tx:        db.NewFromGorm(conn),
		Outbox:    outbox.NewService(outboxRepo, logger.Nop()),
		Sequencer: NewDBSequencer("orders"),
		Notifier:  bus,
		Logger:    logger.Nop(),
		Now:       c.Now,
	})
	require.NoError(t, err)
	return &harness{conn: conn, svc: svc, events: events, outbox: outboxRepo}
}

func strPtr(v string) *string {
	return &v
}

func latteDraft() Draft {
	return Draft{
		FulfillmentType: enums.FulfillmentLocal,
		Customer:        CustomerInput{Name: "Mesa 4"},
		LineItems: []LineItemInput{
			{Name: "Latte", Quantity: 2, UnitPrice: decimal.RequireFromString("5.50")},
		},
	}
}

func deliveryDraft() Draft {
	return Draft{
		FulfillmentType: enums.FulfillmentDelivery,
		Customer:        CustomerInput{Name: "Rosa", Phone: strPtr("555-0101"), Address: strPtr("Calle 8 #12")},
		LineItems: []LineItemInput{
			{Name: "Cappuccino", Quantity: 1, UnitPrice: decimal.RequireFromString("4.25")},
			{Name: "Croissant", Quantity: 3, UnitPrice: decimal.RequireFromString("2.10"), Notes: strPtr("warm")},
		},
	}
}

func dbClient(conn *gorm.DB) *db.Client {
	return db.NewFromGorm(conn)
}
