package www

import (
	"net/http"

	"boxworks/config"
)

const redacted = "********"

// apiConfig returns the running configuration with secrets masked.
func (h *Handlers) apiConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.engine.AppConfig()
	cfg.Lock()
	view := struct {
		Database  config.DatabaseConfig  `json:"database"`
		Redis     config.RedisConfig     `json:"redis"`
		Web       config.WebConfig       `json:"web"`
		Messaging config.MessagingConfig `json:"messaging"`
		Log       config.LogConfig       `json:"log"`
		Inventory config.InventoryConfig `json:"inventory"`
	}{cfg.Database, cfg.Redis, cfg.Web, cfg.Messaging, cfg.Log, cfg.Inventory}
	cfg.Unlock()

	view.Messaging.Kafka.Brokers = append([]string(nil), view.Messaging.Kafka.Brokers...)
	if view.Database.Postgres.Password != "" {
		view.Database.Postgres.Password = redacted
	}
	if view.Redis.Password != "" {
		view.Redis.Password = redacted
	}
	view.Web.SessionSecret = redacted
	view.Web.AdminPassword = redacted
	h.jsonOK(w, view)
}
