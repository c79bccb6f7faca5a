package retention

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nordcare/casework-engine/casework"
)

// =============================================================================
// EXPORT SERIALIZER - Durable formats for the safety net before purge
// =============================================================================
// Both functions are pure. Writing the result to a file or download is the
// caller's responsibility. A serialization failure here is fatal for the
// export call: when export-before-purge was requested, the confirm step must
// be blocked on error.

// exportRow is the stable wire shape of one removal item. Data keeps the
// full record snapshot so the export is byte-for-byte sufficient to
// reconstruct removed records for compliance recovery.
type exportRow struct {
	Type      casework.Kind     `json:"type"`
	ID        string            `json:"id"`
	StaffID   casework.StaffID  `json:"staffId"`
	ClientID  casework.ClientID `json:"clientId"`
	DeletedAt time.Time         `json:"deletedAt"`
	Data      casework.Record   `json:"data"`
}

// ToJSON renders a removal plan as indented JSON.
func ToJSON(items []RemovalItem) ([]byte, error) {
	rows := make([]exportRow, len(items))
	for i, it := range items {
		rows[i] = exportRow(it)
	}
	out, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", casework.ErrExportFailed, err)
	}
	return out, nil
}

// ToCSV flattens each item to one row with the data snapshot
// JSON-stringified. Every field is quote-wrapped and internal quotes are
// doubled, so the output round-trips through any standard CSV parser
// without corrupting the embedded JSON.
func ToCSV(items []RemovalItem) (string, error) {
	var b strings.Builder

	writeRow := func(fields ...string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}

	writeRow("type", "id", "staffId", "clientId", "deletedAt", "data")
	for _, it := range items {
		data, err := json.Marshal(it.Data)
		if err != nil {
			return "", fmt.Errorf("%w: item %s/%s: %v",
				casework.ErrExportFailed, it.Type, it.ID, err)
		}
		writeRow(
			string(it.Type),
			it.ID,
			string(it.StaffID),
			string(it.ClientID),
			it.DeletedAt.UTC().Format(time.RFC3339Nano),
			string(data),
		)
	}
	return b.String(), nil
}
