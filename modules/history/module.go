package history

import (
	"context"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/chat-relay-demo/modules/hub"
)

// Module owns the message database and serves as the hub's store.
type Module struct {
	logger     types.Logger
	db         *gorm.DB
	repository *Repository
	dbPath     string
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ hub.Store                  = (*Module)(nil)
)

func NewModule(logger types.Logger) *Module {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &Module{
		logger: logger.WithModule("history"),
		dbPath: dbPath,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "true" {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&MessageRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	m.db = db
	m.repository = NewRepository(db)
	m.logger.Info("History store started", "path", m.dbPath)
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		sqlDB, err := m.db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	}
	m.logger.Info("History store stopped")
	return nil
}

// Health checks database connectivity.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get database connection: %v", err),
		}
	}
	if err := sqlDB.Ping(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"database": m.dbPath,
		},
	}
}

// Save persists a routed message.
func (m *Module) Save(ctx context.Context, msg *hub.Message) error {
	record := &MessageRecord{
		ID:        msg.ID,
		Scope:     msg.Scope,
		Sender:    msg.Sender,
		Body:      msg.Body,
		Kind:      string(msg.Kind),
		CreatedAt: msg.Timestamp,
	}
	return m.repository.Save(ctx, record)
}

// Query returns recent messages for a scope, oldest first.
func (m *Module) Query(ctx context.Context, scope string, limit int) ([]hub.Message, error) {
	records, err := m.repository.Query(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	return toMessages(records), nil
}

// QueryChat returns recent user messages for a scope, excluding
// system notices.
func (m *Module) QueryChat(ctx context.Context, scope string, limit int) ([]hub.Message, error) {
	records, err := m.repository.QueryChat(ctx, scope, limit)
	if err != nil {
		return nil, err
	}
	return toMessages(records), nil
}

func toMessages(records []MessageRecord) []hub.Message {
	messages := make([]hub.Message, len(records))
	for i, record := range records {
		messages[i] = hub.Message{
			ID:        record.ID,
			Scope:     record.Scope,
			Sender:    record.Sender,
			Body:      record.Body,
			Kind:      hub.MessageKind(record.Kind),
			Timestamp: record.CreatedAt,
		}
	}
	return messages
}
