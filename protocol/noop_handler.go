package protocol

// NoOpHandler implements MessageHandler with no-op methods.
// Embed this and override only the methods you need.
type NoOpHandler struct{}

func (NoOpHandler) HandleOrderEvent(*Envelope, *OrderEvent)       {}
func (NoOpHandler) HandleTaskEvent(*Envelope, *TaskEvent)         {}
func (NoOpHandler) HandleMaterialEvent(*Envelope, *MaterialEvent) {}
func (NoOpHandler) HandleMovementEvent(*Envelope, *MovementEvent) {}
func (NoOpHandler) HandleAlertEvent(*Envelope, *AlertEvent)       {}
func (NoOpHandler) HandleQualityEvent(*Envelope, *QualityEvent)   {}

// Compile-time check that NoOpHandler implements MessageHandler.
var _ MessageHandler = NoOpHandler{}
