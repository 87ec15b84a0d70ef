// SPDX-License-Identifier: MPL-2.0

package bootstrap

// State is a phase of the startup sequence. Transitions are one-way;
// StateFailed is terminal.
type State int

const (
	// StateNotStarted is the initial state.
	StateNotStarted State = iota
	// StateCheckingAsset is probing for the asset on disk.
	StateCheckingAsset
	// StateAcquiringAsset is fetching the asset from its source.
	StateAcquiringAsset
	// StateAssetReady means the asset requirement is satisfied.
	StateAssetReady
	// StateServing means the service process has been started.
	StateServing
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateCheckingAsset:
		return "checking_asset"
	case StateAcquiringAsset:
		return "acquiring_asset"
	case StateAssetReady:
		return "asset_ready"
	case StateServing:
		return "serving"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateFailed
}
