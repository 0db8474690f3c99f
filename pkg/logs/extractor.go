package logs

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	"vaultguard/pkg/types"
)

// Event fragments for the five record kinds the checks consume. Settlement
// epoch ids are indexed and arrive via topics; amounts arrive via data.
const vaultEventsABIJSON = `[
{"type":"event","name":"TotalAssetsUpdated","inputs":[{"name":"totalAssets","type":"uint256","indexed":false}]},
{"type":"event","name":"SettleDeposit","inputs":[{"name":"epochId","type":"uint40","indexed":true},{"name":"settledId","type":"uint40","indexed":true},{"name":"totalAssets","type":"uint256","indexed":false},{"name":"totalSupply","type":"uint256","indexed":false},{"name":"assetsDeposited","type":"uint256","indexed":false},{"name":"sharesMinted","type":"uint256","indexed":false}]},
{"type":"event","name":"SettleRedeem","inputs":[{"name":"epochId","type":"uint40","indexed":true},{"name":"settledId","type":"uint40","indexed":true},{"name":"totalAssets","type":"uint256","indexed":false},{"name":"totalSupply","type":"uint256","indexed":false},{"name":"assetsWithdrawn","type":"uint256","indexed":false},{"name":"sharesBurned","type":"uint256","indexed":false}]},
{"type":"event","name":"Deposit","inputs":[{"name":"sender","type":"address","indexed":true},{"name":"owner","type":"address","indexed":true},{"name":"assets","type":"uint256","indexed":false},{"name":"shares","type":"uint256","indexed":false}]},
{"type":"event","name":"TotalAssetsLifespanUpdated","inputs":[{"name":"oldLifespan","type":"uint128","indexed":false},{"name":"newLifespan","type":"uint128","indexed":false}]}
]`

// DecodeError reports a matched record whose field layout did not decode.
// Distinct from "no match": an empty result is a valid outcome, a garbled
// record is not.
type DecodeError struct {
	Event    string
	LogIndex uint
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s event at log index %d: %v", e.Event, e.LogIndex, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Extractor filters an operation's log records by emitter and record kind
// and decodes the matches in emission order.
type Extractor struct {
	abi abi.ABI
}

// NewExtractor parses the event schemas once.
func NewExtractor() (*Extractor, error) {
	parsed, err := abi.JSON(strings.NewReader(vaultEventsABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse vault events abi: %w", err)
	}
	return &Extractor{abi: parsed}, nil
}

// matches yields the logs emitted by emitter with the given event's topic0.
func (e *Extractor) matches(logs []ethtypes.Log, emitter common.Address, event string) []ethtypes.Log {
	id := e.abi.Events[event].ID
	var out []ethtypes.Log
	for _, lg := range logs {
		if lg.Address == emitter && len(lg.Topics) > 0 && lg.Topics[0] == id {
			out = append(out, lg)
		}
	}
	return out
}

func (e *Extractor) unpack(event string, lg ethtypes.Log) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if err := e.abi.UnpackIntoMap(fields, event, lg.Data); err != nil {
		return nil, &DecodeError{Event: event, LogIndex: lg.Index, Err: err}
	}
	return fields, nil
}

func fieldBig(fields map[string]interface{}, event, name string, lg ethtypes.Log) (*big.Int, error) {
	v, ok := fields[name].(*big.Int)
	if !ok {
		return nil, &DecodeError{Event: event, LogIndex: lg.Index, Err: fmt.Errorf("field %s has type %T", name, fields[name])}
	}
	return v, nil
}

func topicU64(event string, lg ethtypes.Log, i int) (uint64, error) {
	if len(lg.Topics) <= i {
		return 0, &DecodeError{Event: event, LogIndex: lg.Index, Err: fmt.Errorf("missing topic %d", i)}
	}
	return new(big.Int).SetBytes(lg.Topics[i].Bytes()).Uint64(), nil
}

// NavUpdates decodes the NAV-update records emitted by the vault.
func (e *Extractor) NavUpdates(lgs []ethtypes.Log, emitter common.Address) ([]types.NavUpdateEvent, error) {
	var out []types.NavUpdateEvent
	for _, lg := range e.matches(lgs, emitter, "TotalAssetsUpdated") {
		fields, err := e.unpack("TotalAssetsUpdated", lg)
		if err != nil {
			return nil, err
		}
		nav, err := fieldBig(fields, "TotalAssetsUpdated", "totalAssets", lg)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NavUpdateEvent{NewNav: nav})
	}
	return out, nil
}

// SettleDeposits decodes deposit-settlement records. A settlement with no
// pending requests emits none; that is a valid empty result.
func (e *Extractor) SettleDeposits(lgs []ethtypes.Log, emitter common.Address) ([]types.SettleDepositEvent, error) {
	var out []types.SettleDepositEvent
	for _, lg := range e.matches(lgs, emitter, "SettleDeposit") {
		fields, err := e.unpack("SettleDeposit", lg)
		if err != nil {
			return nil, err
		}
		ev := types.SettleDepositEvent{}
		if ev.EpochID, err = topicU64("SettleDeposit", lg, 1); err != nil {
			return nil, err
		}
		if ev.SettledID, err = topicU64("SettleDeposit", lg, 2); err != nil {
			return nil, err
		}
		if ev.TotalAssets, err = fieldBig(fields, "SettleDeposit", "totalAssets", lg); err != nil {
			return nil, err
		}
		if ev.TotalSupply, err = fieldBig(fields, "SettleDeposit", "totalSupply", lg); err != nil {
			return nil, err
		}
		if ev.AssetsDeposit, err = fieldBig(fields, "SettleDeposit", "assetsDeposited", lg); err != nil {
			return nil, err
		}
		if ev.SharesMinted, err = fieldBig(fields, "SettleDeposit", "sharesMinted", lg); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// SettleRedeems decodes redeem-settlement records.
func (e *Extractor) SettleRedeems(lgs []ethtypes.Log, emitter common.Address) ([]types.SettleRedeemEvent, error) {
	var out []types.SettleRedeemEvent
	for _, lg := range e.matches(lgs, emitter, "SettleRedeem") {
		fields, err := e.unpack("SettleRedeem", lg)
		if err != nil {
			return nil, err
		}
		ev := types.SettleRedeemEvent{}
		if ev.EpochID, err = topicU64("SettleRedeem", lg, 1); err != nil {
			return nil, err
		}
		if ev.SettledID, err = topicU64("SettleRedeem", lg, 2); err != nil {
			return nil, err
		}
		if ev.TotalAssets, err = fieldBig(fields, "SettleRedeem", "totalAssets", lg); err != nil {
			return nil, err
		}
		if ev.TotalSupply, err = fieldBig(fields, "SettleRedeem", "totalSupply", lg); err != nil {
			return nil, err
		}
		if ev.AssetsWithdrawn, err = fieldBig(fields, "SettleRedeem", "assetsWithdrawn", lg); err != nil {
			return nil, err
		}
		if ev.SharesBurned, err = fieldBig(fields, "SettleRedeem", "sharesBurned", lg); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// SyncDeposits decodes fast-path deposit records (the ERC4626 Deposit shape).
func (e *Extractor) SyncDeposits(lgs []ethtypes.Log, emitter common.Address) ([]types.SyncDepositEvent, error) {
	var out []types.SyncDepositEvent
	for _, lg := range e.matches(lgs, emitter, "Deposit") {
		fields, err := e.unpack("Deposit", lg)
		if err != nil {
			return nil, err
		}
		if len(lg.Topics) < 3 {
			return nil, &DecodeError{Event: "Deposit", LogIndex: lg.Index, Err: fmt.Errorf("expected 2 indexed addresses, got %d topics", len(lg.Topics)-1)}
		}
		ev := types.SyncDepositEvent{
			Sender: common.BytesToAddress(lg.Topics[1].Bytes()),
			Owner:  common.BytesToAddress(lg.Topics[2].Bytes()),
		}
		if ev.Assets, err = fieldBig(fields, "Deposit", "assets", lg); err != nil {
			return nil, err
		}
		if ev.Shares, err = fieldBig(fields, "Deposit", "shares", lg); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, nil
}

// LifespanUpdates decodes lifespan-change records.
func (e *Extractor) LifespanUpdates(lgs []ethtypes.Log, emitter common.Address) ([]types.LifespanUpdateEvent, error) {
	var out []types.LifespanUpdateEvent
	for _, lg := range e.matches(lgs, emitter, "TotalAssetsLifespanUpdated") {
		fields, err := e.unpack("TotalAssetsLifespanUpdated", lg)
		if err != nil {
			return nil, err
		}
		oldV, err := fieldBig(fields, "TotalAssetsLifespanUpdated", "oldLifespan", lg)
		if err != nil {
			return nil, err
		}
		newV, err := fieldBig(fields, "TotalAssetsLifespanUpdated", "newLifespan", lg)
		if err != nil {
			return nil, err
		}
		out = append(out, types.LifespanUpdateEvent{
			OldLifespan: oldV.Uint64(),
			NewLifespan: newV.Uint64(),
		})
	}
	return out, nil
}
