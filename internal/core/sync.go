package core

import "fmt"

// SyncKind names one of the two reconciliation passes.
type SyncKind string

const (
	KindCategories   SyncKind = "categories"
	KindTransactions SyncKind = "transactions"
)

// ParseSyncKind validates a kind received from a caller or a message.
func ParseSyncKind(s string) (SyncKind, error) {
	switch SyncKind(s) {
	case KindCategories, KindTransactions:
		return SyncKind(s), nil
	default:
		return "", fmt.Errorf("unknown sync kind %q", s)
	}
}
