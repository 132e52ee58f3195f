package ingest

import "go.uber.org/zap"

// Observer sees every stored message. Observers are registered at startup;
// they must not block, and their failures never affect the pipeline.
type Observer interface {
	Name() string
	OnMessageStored(evt Event)
}

// LogObserver writes a structured line per stored message.
type LogObserver struct {
	log *zap.Logger
}

// NewLogObserver creates the logging observer.
func NewLogObserver(log *zap.Logger) *LogObserver {
	return &LogObserver{log: log}
}

// Name identifies the observer in logs.
func (o *LogObserver) Name() string { return "logger" }

// OnMessageStored logs the stored message.
func (o *LogObserver) OnMessageStored(evt Event) {
	o.log.Info("message stored",
		zap.String("message_id", evt.MessageID),
		zap.String("chat_id", evt.ChatID),
		zap.Bool("from_me", evt.FromMe),
		zap.Bool("has_media", evt.HasMedia()),
		zap.Int("body_len", len(evt.Body)))
}
