package protocol

// Request types (the "type" discriminant).
const (
	MethodInit           = "init"
	MethodStep           = "step"
	MethodAction         = "action" // alias of step
	MethodReset          = "reset"
	MethodSeed           = "seed"
	MethodRegisterAgents = "register_agents"
	MethodClose          = "close"
)
