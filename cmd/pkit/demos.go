package main

import (
	"context"
	"fmt"
	"time"

	pk "github.com/pipelinekit/pipelinekit"
	"github.com/pipelinekit/pipelinekit/middleware"
)

// sharedRecorder retains the outcome of every demo dispatch made through
// this process, for the replay command to print.
var sharedRecorder = pk.NewRecorder(50)

func recordOutcome(name, correlationID string, started time.Time, err error) {
	sharedRecorder.Record(pk.ExecutionRecord{
		ID:            correlationID,
		CorrelationID: correlationID,
		PipelineName:  name,
		Success:       err == nil,
		Err:           err,
		Started:       started,
		Finished:      time.Now(),
	})
}

// GreetCommand is the greet demo's input.
type GreetCommand struct {
	Name string
}

// GreetResult is the greet demo's output.
type GreetResult struct {
	Message string
}

type greetDemoImpl struct {
	bus *pk.Bus
	pln *pk.Pipeline[GreetCommand, GreetResult]
}

func newGreetDemo() *greetDemoImpl {
	bus := pk.NewBus()

	schema := middleware.Schema[GreetCommand]{
		Fields: []middleware.Field[GreetCommand]{
			{
				Name:    "name",
				Extract: func(c GreetCommand) any { return c.Name },
				Rules:   []middleware.FieldRule{middleware.Required(), middleware.MaxLength(64)},
			},
		},
	}

	handler := pk.HandlerFunc[GreetCommand, GreetResult](func(_ context.Context, cmd GreetCommand) (GreetResult, error) {
		return GreetResult{Message: "hello, " + cmd.Name}, nil
	})

	pln := pk.NewPipeline[GreetCommand, GreetResult]("greet", handler,
		middleware.NewValidationMiddleware[GreetCommand, GreetResult](schema),
		middleware.NewLoggingMiddleware[GreetCommand, GreetResult]("greet"),
	)
	if err := pk.Register[GreetCommand, GreetResult](bus, "greet", handler,
		middleware.NewValidationMiddleware[GreetCommand, GreetResult](schema),
		middleware.NewLoggingMiddleware[GreetCommand, GreetResult]("greet"),
	); err != nil {
		panic(err)
	}
	return &greetDemoImpl{bus: bus, pln: pln}
}

func (d *greetDemoImpl) Name() string        { return "greet" }
func (d *greetDemoImpl) Description() string { return "validated greeting with request logging" }
func (d *greetDemoImpl) Diagram() string     { return pk.Inspect(d.pln).Diagram() }

func (d *greetDemoImpl) Run(ctx context.Context, arg string) (string, error) {
	meta := pk.NewMetadata()
	dctx := d.bus.NewDispatchContext(ctx, meta)
	started := time.Now()
	res, err := pk.Send[GreetCommand, GreetResult](d.bus, dctx, GreetCommand{Name: arg})
	recordOutcome(d.Name(), meta.CorrelationID, started, err)
	if err != nil {
		return "", err
	}
	return res.Message, nil
}

// ChargeCommand is the charge demo's input: an order to bill.
type ChargeCommand struct {
	OrderID string
	Amount  float64
}

// ChargeResult is the charge demo's output.
type ChargeResult struct {
	Status string
}

type chargeDemoImpl struct {
	bus *pk.Bus
	pln *pk.Pipeline[ChargeCommand, ChargeResult]
}

func newChargeDemo() *chargeDemoImpl {
	bus := pk.NewBus()

	// The backing ledger "fails" whenever the order id is empty, so the
	// breaker has something to trip on in the demo.
	handler := pk.HandlerFunc[ChargeCommand, ChargeResult](func(_ context.Context, cmd ChargeCommand) (ChargeResult, error) {
		if cmd.OrderID == "" {
			return ChargeResult{}, fmt.Errorf("charge: missing order id")
		}
		return ChargeResult{Status: "charged"}, nil
	})

	breaker := pk.NewCircuitBreaker[ChargeCommand, ChargeResult]("charge-ledger", handler, 3, 10*time.Second)

	opts := pk.ResilienceOptions[ChargeCommand, ChargeResult]{
		Breaker:          breaker,
		RetryMaxAttempts: 2,
		RetryBaseDelay:   50 * time.Millisecond,
		RetryStrategy:    pk.ExponentialDelay,
	}

	logging := middleware.NewLoggingMiddleware[ChargeCommand, ChargeResult]("charge")
	if err := pk.RegisterResilient[ChargeCommand, ChargeResult](bus, "charge", handler, opts, logging); err != nil {
		panic(err)
	}

	pln := pk.NewPipeline[ChargeCommand, ChargeResult]("charge", breaker, logging)
	return &chargeDemoImpl{bus: bus, pln: pln}
}

func (d *chargeDemoImpl) Name() string { return "charge" }
func (d *chargeDemoImpl) Description() string {
	return "resilient payment charge with retry and a circuit breaker"
}
func (d *chargeDemoImpl) Diagram() string { return pk.Inspect(d.pln).Diagram() }

func (d *chargeDemoImpl) Run(ctx context.Context, arg string) (string, error) {
	meta := pk.NewMetadata()
	dctx := d.bus.NewDispatchContext(ctx, meta)
	started := time.Now()
	res, err := pk.Send[ChargeCommand, ChargeResult](d.bus, dctx, ChargeCommand{OrderID: arg, Amount: 42})
	recordOutcome(d.Name(), meta.CorrelationID, started, err)
	if err != nil {
		return "", err
	}
	return res.Status, nil
}

var (
	greetDemo  = newGreetDemo()
	chargeDemo = newChargeDemo()
)
