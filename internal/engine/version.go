package engine

// ProtocolVersion is the wire protocol semver the engine sends on every
// command; adapters must echo it back or the session is aborted with
// version_mismatch.
const ProtocolVersion = "1.0.0"
