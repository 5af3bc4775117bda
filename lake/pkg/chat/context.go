package chat

import "fmt"

const (
	defaultContextCatalog = "test_catalog"
	unspecifiedTable      = "unspecified table"
	unspecifiedDatabase   = "unspecified database"
)

// DBContext is the catalog, database and table the user is asking about.
type DBContext struct {
	Catalog        string `json:"catalog"`
	Database       string `json:"database"`
	Table          string `json:"table"`
	MetadataAccess bool   `json:"metadata_access"`
}

func DefaultDBContext() DBContext {
	return DBContext{Catalog: defaultContextCatalog}
}

func (c DBContext) database() string {
	if c.Database == "" {
		return unspecifiedDatabase
	}
	return c.Database
}

func (c DBContext) table() string {
	if c.Table == "" {
		return unspecifiedTable
	}
	return c.Table
}

// FullSystemMessage appends the database context to the configured system message.
func FullSystemMessage(system string, c DBContext) string {
	access := "disabled"
	if c.MetadataAccess {
		access = "enabled"
	}
	return fmt.Sprintf("%s\n\nDatabase Context: You are helping analyze data from %s.%s.%s. Metadata access is %s.",
		system, c.Catalog, c.database(), c.table(), access)
}

// FallbackReply is the assistant turn recorded when the completion API fails.
func FallbackReply(query string, c DBContext, s Settings) string {
	return fmt.Sprintf("Mock Response: I understand you're asking about '%s'. In a real implementation, I would query the %s.%s database and provide insights about your data. (Using %s with temp=%s)",
		query, c.Catalog, c.database(), s.Model, formatNumber(s.Temperature))
}
