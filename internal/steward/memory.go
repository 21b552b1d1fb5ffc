package steward

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const maxRecords = 20

// CycleRecord captures what happened in a single steward cycle.
type CycleRecord struct {
	GameID      string  `json:"game_id"`
	Turn        int     `json:"turn"`
	Action      Action  `json:"action"`
	Lots        int     `json:"lots,omitempty"`
	Money       int     `json:"money"`
	Anger       float64 `json:"anger"`
	CrisisLevel string  `json:"crisis_level"`
	Rationale   string  `json:"rationale,omitempty"`
}

// CycleMemory keeps a ring of recent cycle records on disk.
type CycleMemory struct {
	Records []CycleRecord `json:"records"`

	path string
}

// LoadMemory reads path. A missing or corrupt file yields empty memory.
func LoadMemory(path string) *CycleMemory {
	mem := &CycleMemory{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return mem
	}
	if err := json.Unmarshal(data, mem); err != nil {
		slog.Warn("steward memory corrupted, starting fresh", "path", path, "error", err)
		return &CycleMemory{path: path}
	}
	return mem
}

// Save writes the memory to disk. Memory loaded without a path is not saved.
func (m *CycleMemory) Save() {
	if m.path == "" {
		return
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		slog.Error("failed to marshal steward memory", "error", err)
		return
	}
	if err := os.WriteFile(m.path, data, 0o644); err != nil {
		slog.Error("failed to write steward memory", "path", m.path, "error", err)
	}
}

// Record adds a cycle record, trimming to maxRecords.
func (m *CycleMemory) Record(r CycleRecord) {
	m.Records = append(m.Records, r)
	if len(m.Records) > maxRecords {
		m.Records = m.Records[len(m.Records)-maxRecords:]
	}
}

// Summary renders the last n records of gameID, one per line.
func (m *CycleMemory) Summary(gameID string, n int) string {
	var mine []CycleRecord
	for _, r := range m.Records {
		if r.GameID == gameID {
			mine = append(mine, r)
		}
	}
	if len(mine) > n {
		mine = mine[len(mine)-n:]
	}

	var b strings.Builder
	for _, r := range mine {
		fmt.Fprintf(&b, "turn %d: %s, money=%d, anger=%.0f, crisis=%s", r.Turn, r.Action, r.Money, r.Anger, r.CrisisLevel)
		if r.Lots > 0 {
			fmt.Fprintf(&b, ", lots=%d", r.Lots)
		}
		b.WriteString("\n")
	}
	return b.String()
}
