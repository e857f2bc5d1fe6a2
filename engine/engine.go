package engine

import (
	"sync"
	"time"

	"boxworks/alerts"
	"boxworks/board"
	"boxworks/config"
	"boxworks/inventory"
	"boxworks/messaging"
	"boxworks/orders"
	"boxworks/quality"
	"boxworks/store"

	"github.com/sirupsen/logrus"
)

type Config struct {
	AppConfig *config.Config
	DB        *store.DB
	MsgClient *messaging.Client // nil when messaging is disabled
	Locker    alerts.Locker     // nil when Redis is disabled
	Logger    *logrus.Logger
}

// Engine owns the domain components and the event bus that connects them
// to audit, outbox and live subscribers.
type Engine struct {
	cfg       *config.Config
	db        *store.DB
	msgClient *messaging.Client
	logger    *logrus.Logger
	log       *logrus.Entry
	Events    *EventBus

	orders    *orders.Manager
	board     *board.Coordinator
	inventory *inventory.Ledger
	alerts    *alerts.Deduplicator
	quality   *quality.Gate

	stopChan     chan struct{}
	wg           sync.WaitGroup
	msgConnected bool
}

func New(c Config) *Engine {
	logger := c.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := NewEventBus(logger.WithField("module", "eventbus"))
	e := &Engine{
		cfg:       c.AppConfig,
		db:        c.DB,
		msgClient: c.MsgClient,
		logger:    logger,
		log:       logger.WithField("module", "engine"),
		Events:    bus,
		stopChan:  make(chan struct{}),
	}

	e.orders = orders.NewManager(c.DB, &orderEmitter{bus: bus}, logger)
	e.board = board.NewCoordinator(c.DB, e.orders, &boardEmitter{bus: bus})
	e.inventory = inventory.NewLedger(c.DB, &inventoryEmitter{bus: bus}, logger)
	e.alerts = alerts.NewDeduplicator(c.DB, &alertEmitter{bus: bus}, c.Locker, c.AppConfig.Inventory.DefaultAlertPriority, logger)
	e.quality = quality.NewGate(c.DB, e.orders, &qualityEmitter{bus: bus}, logger)

	e.wireEventHandlers()
	return e
}

func (e *Engine) Start() {
	if e.msgClient != nil {
		e.checkConnectionStatus()
		e.wg.Add(1)
		go e.connectionHealthLoop()
	}
	e.log.Info("engine started")
}

func (e *Engine) Stop() {
	close(e.stopChan)
	e.wg.Wait()
	e.log.Info("engine stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                { return e.db }
func (e *Engine) Logger() *logrus.Logger       { return e.logger }
func (e *Engine) AppConfig() *config.Config    { return e.cfg }
func (e *Engine) Orders() *orders.Manager      { return e.orders }
func (e *Engine) Board() *board.Coordinator    { return e.board }
func (e *Engine) Inventory() *inventory.Ledger { return e.inventory }
func (e *Engine) Alerts() *alerts.Deduplicator { return e.alerts }
func (e *Engine) Quality() *quality.Gate       { return e.quality }
func (e *Engine) MsgClient() *messaging.Client { return e.msgClient }
func (e *Engine) MessagingConnected() bool     { return e.msgClient != nil && e.msgClient.IsConnected() }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else if e.msgConnected {
		e.msgConnected = false
		e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
	}
}

func (e *Engine) connectionHealthLoop() {
	defer e.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopChan:
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}
