// Package genesis maintains access to the consensus parameters every node
// in the network must agree on.
package genesis

import (
	"encoding/json"
	"errors"
	"math/big"
	"os"

	"github.com/ardanlabs/ubilog/foundation/blockchain/database"
)

// Genesis represents the genesis file.
type Genesis struct {
	DelayTolerance    uint64 `json:"delay_tolerance"`    // How far in the future, in ms, a block may claim to be.
	BlocksPerPeriod   uint64 `json:"blocks_per_period"`  // Number of blocks between difficulty adjustments.
	TimePerBlock      uint64 `json:"time_per_block"`     // Expected time between blocks in ms.
	InitialDifficulty uint64 `json:"initial_difficulty"` // Difficulty of the blocks built on genesis.
}

// Default returns the parameters the public network runs with.
func Default() Genesis {
	return Genesis{
		DelayTolerance:    60 * 60 * 1000,
		BlocksPerPeriod:   20,
		TimePerBlock:      1000,
		InitialDifficulty: 256,
	}
}

// =============================================================================

// Load opens and consumes the genesis file. Fields missing from the file
// keep their default value.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	genesis := Default()
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, err
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the parameters can drive the chain.
func (g Genesis) Validate() error {
	switch {
	case g.BlocksPerPeriod == 0:
		return errors.New("blocks per period must be positive")
	case g.TimePerBlock == 0:
		return errors.New("time per block must be positive")
	case g.InitialDifficulty == 0:
		return errors.New("initial difficulty must be positive")
	}

	return nil
}

// TimePerPeriod returns the expected duration of a difficulty period in ms.
func (g Genesis) TimePerPeriod() uint64 {
	return g.TimePerBlock * g.BlocksPerPeriod
}

// InitialTarget returns the target blocks built on genesis must exceed.
func (g Genesis) InitialTarget() *big.Int {
	return database.Target(new(big.Int).SetUint64(g.InitialDifficulty))
}
