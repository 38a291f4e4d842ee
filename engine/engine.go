package engine

import (
	"context"
	"log"
	"time"

	"gasflow/config"
	"gasflow/messaging"
	"gasflow/queue"
	"gasflow/queuestate"
	"gasflow/shift"
	"gasflow/store"
	"gasflow/trip"
)

type LogFunc func(format string, args ...any)

type Config struct {
	AppConfig  *config.Config
	ConfigPath string
	DB         *store.DB
	Shifts     *shift.Resolver
	QueueState *queuestate.Manager
	MsgClient  *messaging.Client
	LogFunc    LogFunc
}

// Engine is the composition root of the allocation core: it owns the
// queue and trip services, wires their events to auditing, the queue
// boards and notifications, and runs the background supervisors.
type Engine struct {
	cfg        *config.Config
	configPath string
	db         *store.DB
	shifts     *shift.Resolver
	queueState *queuestate.Manager
	msgClient  *messaging.Client

	queue      *queue.Service
	trips      *trip.Service
	supervisor *queue.Supervisor
	drainer    *messaging.OutboxDrainer

	Events *EventBus
	logFn  LogFunc

	runCtx    context.Context
	runCancel context.CancelFunc

	msgConnected bool
}

func New(c Config) *Engine {
	logFn := c.LogFunc
	if logFn == nil {
		logFn = log.Printf
	}
	runCtx, runCancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:        c.AppConfig,
		configPath: c.ConfigPath,
		db:         c.DB,
		shifts:     c.Shifts,
		queueState: c.QueueState,
		msgClient:  c.MsgClient,
		Events:     NewEventBus(),
		logFn:      logFn,
		runCtx:     runCtx,
		runCancel:  runCancel,
	}
	e.queue = queue.NewService(c.DB, c.Shifts)
	e.trips = trip.NewService(c.DB)
	return e
}

func (e *Engine) Start() {
	e.queue.SetEmitter(&queueEmitter{bus: e.Events})
	e.trips.SetEmitter(&tripEmitter{bus: e.Events})
	e.queue.SetNotifier(messaging.NewNotifier(e.db, &e.cfg.Messaging))

	e.wireEventHandlers()

	// Warm the queue boards so displays come up correct after a restart.
	if e.queueState != nil {
		e.queueState.RefreshAll(e.runCtx)
	}

	e.supervisor = queue.NewSupervisor(e.db, e.queue,
		e.cfg.Queue.AssignmentTimeout, e.cfg.Queue.SweepInterval)
	go e.supervisor.Run(e.runCtx)

	if e.msgClient != nil {
		e.drainer = messaging.NewOutboxDrainer(e.db, e.msgClient, e.cfg.Messaging.OutboxDrainInterval)
		e.drainer.Start()

		consumer := messaging.NewConsumer(e.msgClient, e.cfg.Messaging.FieldReportsTopic,
			messaging.NewFieldHandler(e.trips))
		if err := consumer.Start(); err != nil {
			e.logFn("engine: field consumer: %v", err)
		}

		e.checkConnectionStatus()
		go e.connectionHealthLoop()
	}

	e.logFn("engine: started")
}

func (e *Engine) Stop() {
	e.runCancel()
	if e.drainer != nil {
		e.drainer.Stop()
	}
	e.logFn("engine: stopped")
}

// Accessors
func (e *Engine) DB() *store.DB                  { return e.db }
func (e *Engine) AppConfig() *config.Config      { return e.cfg }
func (e *Engine) ConfigPath() string             { return e.configPath }
func (e *Engine) Queue() *queue.Service          { return e.queue }
func (e *Engine) Trips() *trip.Service           { return e.trips }
func (e *Engine) Shifts() *shift.Resolver        { return e.shifts }
func (e *Engine) QueueState() *queuestate.Manager { return e.queueState }
func (e *Engine) MsgClient() *messaging.Client   { return e.msgClient }

func (e *Engine) checkConnectionStatus() {
	if e.msgClient.IsConnected() {
		if !e.msgConnected {
			e.msgConnected = true
			e.Events.Emit(Event{Type: EventMessagingConnected, Payload: ConnectionEvent{Detail: "messaging connected"}})
		}
	} else {
		if e.msgConnected {
			e.msgConnected = false
			e.Events.Emit(Event{Type: EventMessagingDisconnected, Payload: ConnectionEvent{Detail: "messaging disconnected"}})
		}
	}
}

func (e *Engine) connectionHealthLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-e.runCtx.Done():
			return
		case <-ticker.C:
			e.checkConnectionStatus()
		}
	}
}

// ReconfigureMessaging reconnects messaging with current config.
func (e *Engine) ReconfigureMessaging() {
	if e.msgClient == nil {
		return
	}
	if err := e.msgClient.Reconfigure(&e.cfg.Messaging); err != nil {
		e.logFn("engine: messaging reconfigure error: %v", err)
	} else {
		e.logFn("engine: messaging reconfigured")
	}
	e.checkConnectionStatus()
}
