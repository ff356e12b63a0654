package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/openspawn/openspawn-sub002/internal/sim/engine"
	"github.com/openspawn/openspawn-sub002/internal/sim/model"
)

const Version = 1

// Header is written as a JSON line in front of the gob body so tools can
// identify a snapshot without decoding it.
type Header struct {
	Version  int    `json:"version"`
	Scenario string `json:"scenario"`
	Tick     uint64 `json:"tick"`
	Digest   string `json:"digest"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed            int64     `json:"seed"`
	StartTime       time.Time `json:"start_time"`
	TickUnitMinutes int       `json:"tick_unit_minutes"`

	Scenario model.Scenario `json:"scenario"`
}

// FromEngine converts an engine snapshot into the on-disk form.
func FromEngine(s engine.Snapshot) SnapshotV1 {
	return SnapshotV1{
		Header: Header{
			Version:  Version,
			Scenario: s.Scenario.Name,
			Tick:     s.Tick,
			Digest:   s.Digest,
		},
		Seed:            s.Seed,
		StartTime:       s.StartTime,
		TickUnitMinutes: s.TickUnitMinutes,
		Scenario:        s.Scenario,
	}
}

// Path is the conventional location of the snapshot for tick under runDir.
func Path(runDir string, tick uint64) string {
	return filepath.Join(runDir, "snapshots", fmt.Sprintf("%d.snap.zst", tick))
}

func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	return nil
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The header line is repeated inside the gob body.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("read header: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the JSON header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	return h, nil
}
