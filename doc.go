// Package thirdweb implements the transaction execution and gasless
// relay pipeline: it decides how a resolved contract call gets
// executed, computes fee parameters for the current fee market, and
// either signs and broadcasts directly or hands the call to a gasless
// relay backend, reporting a consistent lifecycle to observers either
// way.
//
// Subpackages supply the concrete collaborators: fees (fee strategy),
// relay (forwarder and Biconomy relay backends), signers (private-key
// signer), and relayer (a reference forwarder relayer server).
package thirdweb
