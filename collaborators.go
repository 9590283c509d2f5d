// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"time"

	"github.com/luxfi/ids"
)

// ChainMetadata is the oracle's view of an external chain.
type ChainMetadata struct {
	ChainID       string `json:"chainId"`
	Name          string `json:"name"`
	BlockTime     uint64 `json:"blockTime"`
	Confirmations uint32 `json:"confirmations"`
}

// ChainOracle answers questions about external chains the core cannot
// answer from its own configuration.
type ChainOracle interface {
	ChainIsSupported(chainID string) bool
	ChainMetadata(chainID string) (ChainMetadata, error)
}

// ComplianceEngine is consulted before a transfer is admitted and notified
// after it executes. Reports are fire-and-forget: the transfer's state has
// already committed when the report is made.
type ComplianceEngine interface {
	CheckCompliance(sender ids.ShortID, amount uint64, destChain string) bool
	ReportTransaction(id ids.ID, sender ids.ShortID, amount uint64, destChain string)
}

// CryptoValidator verifies signature material supplied with votes and
// releases. The core's own consensus accounting does not depend on it.
type CryptoValidator interface {
	VerifyMultiSignature(msg ids.ID, sigs [][]byte, signers []ids.NodeID) bool
	ValidateTimelock(msg ids.ID, unlockTime time.Time) bool
}

type acceptAllOracle struct{}

func (acceptAllOracle) ChainIsSupported(string) bool { return true }
func (acceptAllOracle) ChainMetadata(chainID string) (ChainMetadata, error) {
	return ChainMetadata{ChainID: chainID}, nil
}

type acceptAllCompliance struct{}

func (acceptAllCompliance) CheckCompliance(ids.ShortID, uint64, string) bool { return true }
func (acceptAllCompliance) ReportTransaction(ids.ID, ids.ShortID, uint64, string) {}

type acceptAllCrypto struct{}

func (acceptAllCrypto) VerifyMultiSignature(ids.ID, [][]byte, []ids.NodeID) bool { return true }
func (acceptAllCrypto) ValidateTimelock(ids.ID, time.Time) bool { return true }
