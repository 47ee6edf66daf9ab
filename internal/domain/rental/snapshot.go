package rental

import (
	"encoding/json"
	"fmt"
	"time"
)

// SnapshotSchemaVersion is the envelope version written by EncodeSnapshot.
// Bump it when a field change makes older snapshots unreadable.
const SnapshotSchemaVersion = 1

// Snapshot is the versioned envelope around a persisted draft
type Snapshot struct {
	SchemaVersion int             `json:"schema_version"`
	SavedAt       time.Time       `json:"saved_at"`
	Step          Step            `json:"step"`
	Draft         json.RawMessage `json:"draft"`
}

// EncodeSnapshot wraps the full draft and the wizard position in an envelope
func EncodeSnapshot(d *ContractDraft, step Step, savedAt time.Time) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return json.Marshal(Snapshot{
		SchemaVersion: SnapshotSchemaVersion,
		SavedAt:       savedAt.UTC(),
		Step:          step,
		Draft:         body,
	})
}

// DecodeSnapshot restores a draft. Malformed, unknown-version or inconsistent
// snapshots fail with an error wrapping ErrDraftIntegrity.
func DecodeSnapshot(data []byte) (*ContractDraft, Step, error) {
	var env Snapshot
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDraftIntegrity, err)
	}
	if env.SchemaVersion != SnapshotSchemaVersion {
		return nil, 0, fmt.Errorf("%w: unsupported schema version %d", ErrDraftIntegrity, env.SchemaVersion)
	}
	var d ContractDraft
	if err := json.Unmarshal(env.Draft, &d); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDraftIntegrity, err)
	}
	if err := checkRestored(&d); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDraftIntegrity, err)
	}
	step := env.Step
	if !step.IsValid() {
		step = StepParties
	}
	return &d, step, nil
}

func checkRestored(d *ContractDraft) error {
	if !d.Status.IsValid() {
		return fmt.Errorf("invalid status %q", d.Status)
	}
	if d.DurationMonths < 0 || d.DurationMonths > MaxDurationMonths {
		return fmt.Errorf("invalid duration %d", d.DurationMonths)
	}
	if d.UseCustomMonthlyRents && len(d.CustomMonthlyRents) != d.DurationMonths {
		return fmt.Errorf("custom rents hold %d months, contract has %d", len(d.CustomMonthlyRents), d.DurationMonths)
	}
	if d.MonthlyRent.IsNegative() || d.Deposit.IsNegative() {
		return fmt.Errorf("negative amount")
	}
	return nil
}
