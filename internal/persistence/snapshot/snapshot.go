// Package snapshot writes whole games to zstd-compressed files: one JSON header
// line followed by the JSON save body.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/carbon-monster/internal/engine"
)

// Ext is the file extension of snapshot files.
const Ext = ".json.zst"

type Header struct {
	Version string    `json:"version"`
	GameID  string    `json:"game_id"`
	Turn    int       `json:"turn"`
	Year    int       `json:"year"`
	SavedAt time.Time `json:"saved_at"`
}

// Write stores s at path, creating parent directories as needed.
func Write(path string, s engine.SaveState) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	h := Header{Version: s.Version, GameID: s.GameID, Turn: s.World.Turn, Year: s.World.Year, SavedAt: time.Now().UTC()}
	hb, err := json.Marshal(h)
	if err != nil {
		enc.Close()
		return fmt.Errorf("json encode header: %w", err)
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		enc.Close()
		return err
	}
	if err := json.NewEncoder(bw).Encode(&s); err != nil {
		enc.Close()
		return fmt.Errorf("json encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read loads the header and body at path. A body whose version differs from
// the running build is refused.
func Read(path string) (Header, engine.SaveState, error) {
	var (
		h Header
		s engine.SaveState
	)
	f, err := os.Open(path)
	if err != nil {
		return h, s, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, s, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, s, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, s, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != engine.SaveVersion {
		return h, s, fmt.Errorf("snapshot version %q, want %q", h.Version, engine.SaveVersion)
	}
	if err := json.NewDecoder(br).Decode(&s); err != nil {
		return h, s, fmt.Errorf("json decode: %w", err)
	}
	return h, s, nil
}

// Export writes g into dir under a name derived from its id and turn, and
// returns the path.
func Export(dir string, g *engine.Game) (string, error) {
	s := g.Save()
	path := filepath.Join(dir, fmt.Sprintf("%s-turn-%02d%s", g.ID, s.World.Turn, Ext))
	if err := Write(path, s); err != nil {
		return "", fmt.Errorf("export snapshot: %w", err)
	}
	return path, nil
}
