package evm

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/pkg/errors"
)

// erc20ABI covers the token methods used for bridging.
const erc20ABI = `[
{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"}
]`

// stargateRouterABI covers the router methods used for bridging.
const stargateRouterABI = `[
{"inputs":[
  {"internalType":"uint16","name":"_dstChainId","type":"uint16"},
  {"internalType":"uint8","name":"_functionType","type":"uint8"},
  {"internalType":"bytes","name":"_toAddress","type":"bytes"},
  {"internalType":"bytes","name":"_transferAndCallPayload","type":"bytes"},
  {"components":[
    {"internalType":"uint256","name":"dstGasForCall","type":"uint256"},
    {"internalType":"uint256","name":"dstNativeAmount","type":"uint256"},
    {"internalType":"bytes","name":"dstNativeAddr","type":"bytes"}],
   "internalType":"struct IStargateRouter.lzTxObj","name":"_lzTxParams","type":"tuple"}],
 "name":"quoteLayerZeroFee",
 "outputs":[{"internalType":"uint256","name":"","type":"uint256"},{"internalType":"uint256","name":"","type":"uint256"}],
 "stateMutability":"view","type":"function"},
{"inputs":[
  {"internalType":"uint16","name":"_dstChainId","type":"uint16"},
  {"internalType":"uint256","name":"_srcPoolId","type":"uint256"},
  {"internalType":"uint256","name":"_dstPoolId","type":"uint256"},
  {"internalType":"address payable","name":"_refundAddress","type":"address"},
  {"internalType":"uint256","name":"_amountLD","type":"uint256"},
  {"internalType":"uint256","name":"_minAmountLD","type":"uint256"},
  {"components":[
    {"internalType":"uint256","name":"dstGasForCall","type":"uint256"},
    {"internalType":"uint256","name":"dstNativeAmount","type":"uint256"},
    {"internalType":"bytes","name":"dstNativeAddr","type":"bytes"}],
   "internalType":"struct IStargateRouter.lzTxObj","name":"_lzTxParams","type":"tuple"},
  {"internalType":"bytes","name":"_to","type":"bytes"},
  {"internalType":"bytes","name":"_payload","type":"bytes"}],
 "name":"swap","outputs":[],"stateMutability":"payable","type":"function"}
]`

// refuelABI covers the native refuel deposit.
const refuelABI = `[
{"inputs":[
  {"internalType":"uint256","name":"destinationChainId","type":"uint256"},
  {"internalType":"address","name":"_to","type":"address"}],
 "name":"depositNativeToken","outputs":[],"stateMutability":"payable","type":"function"}
]`

var (
	abiOnce    sync.Once
	abiErr     error
	erc20      abi.ABI
	router     abi.ABI
	refuelPool abi.ABI
)

// contractABIs parses the embedded ABIs once per process.
//
// Returns:
// - error: an error if any ABI fails to parse.
func contractABIs() error {
	abiOnce.Do(func() {
		if erc20, abiErr = abi.JSON(strings.NewReader(erc20ABI)); abiErr != nil {
			abiErr = errors.Wrap(abiErr, "failed to parse token ABI")
			return
		}
		if router, abiErr = abi.JSON(strings.NewReader(stargateRouterABI)); abiErr != nil {
			abiErr = errors.Wrap(abiErr, "failed to parse router ABI")
			return
		}
		if refuelPool, abiErr = abi.JSON(strings.NewReader(refuelABI)); abiErr != nil {
			abiErr = errors.Wrap(abiErr, "failed to parse refuel ABI")
		}
	})
	return abiErr
}
