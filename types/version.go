package types

// Version is the canonical petframes version.
// The CLI, the ipc event stream and adapter payloads share this version.
const Version = "0.3.0"

// ContractVersion is stamped on every externally published payload
// (ipc frames, phase_ready events). It moves in lockstep with Version.
const ContractVersion = Version
