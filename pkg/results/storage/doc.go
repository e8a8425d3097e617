// Package storage provides results.Store backends.
//
// MemoryStore keeps records in a map and suits tests and short-lived
// servers. SQLiteStore persists to a single file through either SQLite
// driver; Open picks a backend from config.ResultsConfig.
package storage
