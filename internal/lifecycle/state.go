// Package lifecycle is the variant state machine: it sequences
// generation checks, build, dry run, tournament, and scoring, applies
// the repair budget, and persists state so an interrupted run resumes
// from recorded facts instead of process memory.
package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// State is a variant's lifecycle phase.
type State string

const (
	StatePending     State = "pending"
	StateGenerated   State = "generated"
	StateMalformed   State = "malformed"
	StateCompiled    State = "compiled"
	StateBuildFailed State = "build_failed"
	StateDryRunOk    State = "dry_run_ok"
	StateRepairing   State = "repairing"
	StateTournament  State = "tournament"
	StateScored      State = "scored"
	StateFailed      State = "failed"
)

// FailureKind classifies why a variant (or one of its matches) failed.
type FailureKind string

const (
	FailureNone          FailureKind = ""
	FailureMalformed     FailureKind = "malformed_output"
	FailureBuild         FailureKind = "build_failed"
	FailureDryRun        FailureKind = "dry_run_failed"
	FailureMatchCrash    FailureKind = "match_crash"
	FailureBattleAborted FailureKind = "battle_aborted"
	FailureResourceLimit FailureKind = "resource_limit_exceeded"
)

// transitions is the full legal-move table. Terminal states have no
// successors.
var transitions = map[State][]State{
	StatePending:     {StateGenerated},
	StateGenerated:   {StateMalformed, StateCompiled, StateRepairing},
	StateMalformed:   {StateFailed},
	StateCompiled:    {StateBuildFailed, StateDryRunOk, StateRepairing, StateFailed},
	StateBuildFailed: {StateRepairing, StateFailed},
	StateDryRunOk:    {StateTournament},
	StateRepairing:   {StateGenerated, StateFailed},
	StateTournament:  {StateScored},
	StateScored:      {},
	StateFailed:      {},
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s State) canReach(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

const stateFile = "state.json"

// Variant is one generation+evaluation run for a model. Mutated only
// through To and Fail; every mutation is persisted before it is
// observable. Never deleted automatically.
type Variant struct {
	ModelID         string      `json:"model_id"`
	VariantID       string      `json:"variant_id"`
	State           State       `json:"state"`
	FailureKind     FailureKind `json:"failure_kind,omitempty"`
	RepairsUsed     int         `json:"repairs_used"`
	RepairBudget    int         `json:"repair_budget"`
	BotTreeSHA      string      `json:"bot_tree_sha,omitempty"`
	ConfigHash      string      `json:"config_hash"`
	ManifestVersion int         `json:"baseline_manifest_version,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`

	root string
}

// NewVariant creates a pending variant rooted at the workspace.
func NewVariant(root, modelID, variantID, configHash string, repairBudget int) *Variant {
	return &Variant{
		ModelID:      modelID,
		VariantID:    variantID,
		State:        StatePending,
		RepairBudget: repairBudget,
		ConfigHash:   configHash,
		root:         root,
	}
}

// LoadVariant reads the persisted state from a workspace root.
func LoadVariant(root string) (*Variant, error) {
	data, err := os.ReadFile(filepath.Join(root, stateFile))
	if err != nil {
		return nil, fmt.Errorf("reading variant state: %w", err)
	}
	var v Variant
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parsing variant state: %w", err)
	}
	v.root = root
	return &v, nil
}

// Save persists the variant to its workspace.
func (v *Variant) Save() error {
	v.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(v.root, stateFile), data, 0o644)
}

// To moves the variant along a legal edge and persists the new state.
func (v *Variant) To(next State) error {
	if !v.State.canReach(next) {
		return fmt.Errorf("illegal transition %s -> %s for %s/%s", v.State, next, v.ModelID, v.VariantID)
	}
	v.State = next
	return v.Save()
}

// Fail moves the variant to the terminal failed state with its kind.
func (v *Variant) Fail(kind FailureKind) error {
	if v.State.Terminal() {
		return fmt.Errorf("variant %s/%s already terminal in %s", v.ModelID, v.VariantID, v.State)
	}
	v.State = StateFailed
	v.FailureKind = kind
	return v.Save()
}

// RepairAvailable reports whether the repair budget has room.
func (v *Variant) RepairAvailable() bool {
	return v.RepairsUsed < v.RepairBudget
}

// UseRepair spends one repair attempt and enters Repairing.
func (v *Variant) UseRepair() error {
	if !v.RepairAvailable() {
		return fmt.Errorf("repair budget exhausted (%d/%d)", v.RepairsUsed, v.RepairBudget)
	}
	if !v.State.canReach(StateRepairing) {
		return fmt.Errorf("cannot repair from %s", v.State)
	}
	v.RepairsUsed++
	v.State = StateRepairing
	return v.Save()
}
